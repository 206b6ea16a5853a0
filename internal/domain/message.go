package domain

import "time"

// MessageKind discriminates the timeline variants.
type MessageKind string

const (
	// KindText is a text message whose payload is (or was) ciphertext.
	KindText MessageKind = "text"
	// KindMedia is a shared media reference; the payload is never encrypted.
	KindMedia MessageKind = "media"
	// KindUndecryptable is a text message that failed authenticated
	// decryption under the current session key. It stays in the timeline
	// and keeps its ciphertext so a later key can retry it.
	KindUndecryptable MessageKind = "undecryptable"
)

// Placeholder texts shown for entries that carry no usable plaintext.
const (
	LabelKeyUnavailable = "[encrypted - key not available]"
	LabelUndecryptable  = "[undecryptable under current key]"
)

// MediaRef points at media held by the media collaborator. The URL serves
// the recipient-specific watermarked rendition; the core passes it through
// unmodified.
type MediaRef struct {
	MediaID   string `json:"mediaId"`
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
}

// Message is one timeline entry. Entries are created optimistically on
// send, enriched with a server id when the ack arrives, and never mutated
// after they are decrypted and cached except to merge that id.
type Message struct {
	ID            string      `json:"messageId,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
	SenderID      string      `json:"senderId"`
	ReceiverID    string      `json:"receiverId"`
	Kind          MessageKind `json:"kind"`
	Text          string      `json:"text,omitempty"`
	Ciphertext    string      `json:"ciphertext,omitempty"`
	Decrypted     bool        `json:"decrypted,omitempty"`
	Media         *MediaRef   `json:"media,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// HasPlaintext reports whether the entry carries usable decrypted text,
// as opposed to a label placeholder or raw ciphertext.
func (m Message) HasPlaintext() bool {
	return m.Kind == KindText && m.Decrypted && m.Text != "" &&
		m.Text != LabelKeyUnavailable && m.Text != LabelUndecryptable
}

// Provenance is the recorded distribution chain of a media item, displayed
// unmodified for leak tracing.
type Provenance struct {
	MediaID   string          `json:"mediaId"`
	CreatorID string          `json:"creatorId"`
	MediaType string          `json:"mediaType"`
	MasterURL string          `json:"masterUrl"`
	Hops      []ProvenanceHop `json:"distributionPath"`
}

// ProvenanceHop records one share: who sent the media to whom, and when.
type ProvenanceHop struct {
	RecipientID string    `json:"recipientId"`
	FromUserID  string    `json:"fromUserId"`
	SharedAt    time.Time `json:"sharedAt"`
}

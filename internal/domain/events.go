package domain

import "time"

// EventType names the server-to-client relay events.
type EventType string

const (
	EventPeerKey     EventType = "peer-public-key"
	EventMessage     EventType = "receive-message"
	EventMessageSent EventType = "message-sent"
	EventMedia       EventType = "receive-media"
	EventMediaSent   EventType = "media-sent"
	EventError       EventType = "message-error"
)

// Event is one inbox entry delivered by the relay. Exactly one payload
// pointer matching Type is set. Delivery is at-least-once; consumers must
// dedupe by message id.
type Event struct {
	Type        EventType         `json:"type"`
	PeerKey     *PeerKeyEvent     `json:"peerKey,omitempty"`
	Message     *MessageEvent     `json:"message,omitempty"`
	MessageSent *MessageSentEvent `json:"messageSent,omitempty"`
	Media       *MediaEvent       `json:"media,omitempty"`
	MediaSent   *MediaSentEvent   `json:"mediaSent,omitempty"`
	Error       *ErrorEvent       `json:"error,omitempty"`
}

// PeerKeyEvent announces a peer's last-registered public key. A newer
// announcement always replaces an older one.
type PeerKeyEvent struct {
	PeerID    string `json:"peerId"`
	PublicKey string `json:"publicKey"` // base64 raw X25519 point
}

// MessageEvent is an inbound encrypted text message.
type MessageEvent struct {
	MessageID  string    `json:"messageId"`
	Ciphertext string    `json:"ciphertext"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageSentEvent acks an optimistic send; matched by correlation id.
type MessageSentEvent struct {
	MessageID     string    `json:"messageId"`
	ReceiverID    string    `json:"receiverId"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// MediaEvent is an inbound shared media reference.
type MediaEvent struct {
	URL        string    `json:"url"`
	MediaType  string    `json:"mediaType"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	MessageID  string    `json:"messageId"`
	MediaID    string    `json:"mediaId"`
	Timestamp  time.Time `json:"timestamp"`
}

// MediaSentEvent acks a media share; matched by correlation id.
type MediaSentEvent struct {
	MessageID     string    `json:"messageId"`
	ReceiverID    string    `json:"receiverId"`
	MediaID       string    `json:"mediaId"`
	MasterURL     string    `json:"masterUrl"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// ErrorEvent reports a delivery or processing failure for the last action.
type ErrorEvent struct {
	Error string `json:"error"`
}

// Client-to-server request payloads.

// AnnounceRequest registers this identity's public key with the relay.
// The server-side registry is ephemeral, so clients re-announce on every
// (re)connect.
type AnnounceRequest struct {
	PublicKey string `json:"publicKey"` // base64 raw X25519 point
}

// KeyRequest asks the relay to resend a peer's last-announced key.
type KeyRequest struct {
	PeerID string `json:"peerId"`
}

// SendRequest delivers an encrypted text message.
type SendRequest struct {
	CorrelationID string `json:"correlationId"`
	Ciphertext    string `json:"ciphertext"` // base64(nonce) ":" base64(ct)
	ReceiverID    string `json:"receiverId"`
}

// ShareRequest registers a recipient-specific distribution of existing media.
type ShareRequest struct {
	CorrelationID string `json:"correlationId"`
	MediaID       string `json:"mediaId"`
	ReceiverID    string `json:"receiverId"`
}

// RegisterMediaRequest records a media reference owned by the caller so it
// can be shared. The upload itself is handled by the media collaborator.
type RegisterMediaRequest struct {
	MediaType string `json:"mediaType"`
	MasterURL string `json:"masterUrl"`
}

package domain

import "context"

// IdentityStore persists the local identity's key pair across restarts.
type IdentityStore interface {
	// LoadOrCreate returns the persisted identity for userID, generating
	// and persisting a fresh pair when nothing readable exists. It never
	// fails outward for unreadable or missing material; regenerated
	// reports that a new pair replaced (and orphaned) an old one.
	LoadOrCreate(userID, passphrase string) (id Identity, regenerated bool, err error)
}

// StateStore persists the per-identity local caches: peer public keys,
// decrypted message history, and unread counters. All loads are
// best-effort; corrupt storage yields empty results, never an error the
// caller must handle.
type StateStore interface {
	CachePeerKey(peerID string, pub X25519Public) error
	PeerKeys() map[string]X25519Public

	SaveHistory(peerID string, msgs []Message) error
	History(peerID string) []Message
	ClearHistory(peerID string) error

	SaveUnread(counts map[string]int) error
	Unread() map[string]int

	Close() error
}

// RelayClient is the boundary contract with the real-time relay. The
// transport must deliver inbox events at-least-once (consumers dedupe by
// message id) with best-effort per-sender ordering; cross-sender ordering
// is not guaranteed.
type RelayClient interface {
	// AnnouncePublicKey registers our key. Must be re-invoked after any
	// reconnect: the server registry does not survive restarts.
	AnnouncePublicKey(ctx context.Context, pub X25519Public) error
	// RequestPeerKey asks the server to resend peerID's last-announced
	// key into our inbox. Unknown peers produce no event.
	RequestPeerKey(ctx context.Context, peerID string) error

	SendMessage(ctx context.Context, req SendRequest) error
	ShareMedia(ctx context.Context, req ShareRequest) error
	RegisterMedia(ctx context.Context, req RegisterMediaRequest) (mediaID string, err error)

	// FetchEvents returns up to limit pending inbox events without
	// consuming them; AckEvents removes the first n.
	FetchEvents(ctx context.Context, limit int) ([]Event, error)
	AckEvents(ctx context.Context, n int) error

	// History returns the server-authoritative message history with a
	// peer, ordered by time ascending.
	History(ctx context.Context, peerID string) ([]Message, error)
	// Provenance returns a media item's distribution chain for display.
	Provenance(ctx context.Context, mediaID string) (Provenance, error)
}

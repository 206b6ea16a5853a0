package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/history"
	"cloakchat/internal/logging"
	"cloakchat/internal/pending"
	"cloakchat/internal/session"
	"cloakchat/internal/unread"
)

// ErrNoPlaintext is returned when a forward targets an entry that has no
// usable decrypted text (still encrypted, labeled, or empty).
var ErrNoPlaintext = errors.New("message has no forwardable plaintext")

// Notify receives inbound timeline entries as they are appended, for a
// live view. It is called from the pump goroutine; keep it fast.
type Notify func(peerID string, msg domain.Message)

// Config carries the engine's tunables. Zero values select the defaults.
type Config struct {
	// AwaitTimeout bounds Send's wait for a peer key.
	AwaitTimeout time.Duration
	// PollInterval is the pump's fetch cadence.
	PollInterval time.Duration
	// FetchLimit caps events per fetch; zero means no limit.
	FetchLimit int
}

// Client orchestrates one local identity's conversations.
type Client struct {
	identity domain.Identity
	relay    domain.RelayClient
	store    domain.StateStore
	sessions *session.Manager
	pending  *pending.Queue
	recon    *history.Reconciler
	unread   *unread.Tracker
	log      logging.Logger
	cfg      Config

	notify Notify

	stateMu  sync.Mutex
	openPeer string
	seen     map[string]struct{} // processed message ids, for at-least-once dedupe
}

// New wires a client from its collaborators.
func New(
	id domain.Identity,
	rc domain.RelayClient,
	store domain.StateStore,
	sessions *session.Manager,
	queue *pending.Queue,
	recon *history.Reconciler,
	tracker *unread.Tracker,
	log logging.Logger,
	cfg Config,
) *Client {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = session.DefaultAwaitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Client{
		identity: id,
		relay:    rc,
		store:    store,
		sessions: sessions,
		pending:  queue,
		recon:    recon,
		unread:   tracker,
		log:      log,
		cfg:      cfg,
		seen:     make(map[string]struct{}),
	}
}

// SetNotify installs the live-view callback. Call before Run.
func (c *Client) SetNotify(n Notify) { c.notify = n }

// Announce registers our public key with the relay. The server registry is
// ephemeral, so this runs on every connect and reconnect.
func (c *Client) Announce(ctx context.Context) error {
	if err := c.relay.AnnouncePublicKey(ctx, c.identity.XPub); err != nil {
		return fmt.Errorf("announce public key: %w", err)
	}
	return nil
}

// Send encrypts text for peerID and posts it, waiting up to the configured
// timeout for the peer's key when no session exists yet. On success the
// message is appended optimistically to the local timeline; its server id
// arrives later via the sent ack, matched by correlation id.
func (c *Client) Send(ctx context.Context, peerID, text string) (domain.Message, error) {
	key, err := c.sessions.AwaitResolve(ctx, peerID, c.cfg.AwaitTimeout)
	if err != nil {
		return domain.Message{}, err
	}
	wire, err := crypto.Encrypt([]byte(text), key)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encrypt for %s: %w", peerID, err)
	}

	msg := domain.Message{
		CorrelationID: uuid.NewString(),
		SenderID:      c.identity.UserID,
		ReceiverID:    peerID,
		Kind:          domain.KindText,
		Text:          text,
		Ciphertext:    wire,
		Decrypted:     true,
		Timestamp:     time.Now().UTC(),
	}
	if err := c.relay.SendMessage(ctx, domain.SendRequest{
		CorrelationID: msg.CorrelationID,
		Ciphertext:    wire,
		ReceiverID:    peerID,
	}); err != nil {
		return domain.Message{}, fmt.Errorf("send to %s: %w", peerID, err)
	}

	c.stateMu.Lock()
	c.appendLocked(peerID, msg)
	c.stateMu.Unlock()
	return msg, nil
}

// Open makes peerID the active conversation: clears its unread counter,
// reconciles server history against the local cache, and decrypts what it
// can. The returned timeline is the new cache baseline.
func (c *Client) Open(ctx context.Context, peerID string) ([]domain.Message, error) {
	// Mark the conversation open before anything else: a message pumped
	// concurrently with the history fetch belongs to the conversation
	// being opened and must not count as unread.
	c.stateMu.Lock()
	c.openPeer = peerID
	c.stateMu.Unlock()
	c.unread.OnOpen(peerID)

	server, err := c.relay.History(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("fetch history with %s: %w", peerID, err)
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	merged := c.recon.MergeServerAndLocal(server, c.store.History(peerID))
	key, haveKey := c.sessions.Resolve(peerID)
	if !haveKey {
		// Kick off a key request so a later Open (or the live view) can
		// decrypt; this Open labels the entries instead of blocking.
		if err := c.relay.RequestPeerKey(ctx, peerID); err != nil {
			c.log.Warn(ctx, "peer key request failed", "peer", peerID, "err", err)
		}
	}
	timeline := c.recon.DecryptRemaining(peerID, merged, key, haveKey)

	// Server-confirmed entries are now part of the cache baseline; a
	// redelivered inbox event for one of them must not append a duplicate.
	for _, m := range timeline {
		if m.ID != "" {
			c.seen[m.ID] = struct{}{}
		}
	}
	return timeline, nil
}

// CloseConversation deactivates the open conversation, so inbound traffic
// counts as unread again.
func (c *Client) CloseConversation() {
	c.stateMu.Lock()
	c.openPeer = ""
	c.stateMu.Unlock()
}

// Forward re-sends the plaintext of an already-decrypted entry in the
// fromPeer conversation to toPeer, encrypted under toPeer's session key.
// Media entries are forwarded as a fresh share of the same media id, which
// extends its provenance chain. The forwarded copy lands in the toPeer
// conversation like inbound traffic does: when that conversation is not
// the open one, its unread counter increments.
func (c *Client) Forward(ctx context.Context, fromPeer, messageID, toPeer string) (domain.Message, error) {
	c.stateMu.Lock()
	var src *domain.Message
	for _, m := range c.store.History(fromPeer) {
		if m.ID == messageID {
			src = &m
			break
		}
	}
	c.stateMu.Unlock()

	if src == nil {
		return domain.Message{}, fmt.Errorf("message %s not found in conversation with %s", messageID, fromPeer)
	}

	var (
		fwd domain.Message
		err error
	)
	switch {
	case src.Kind == domain.KindMedia && src.Media != nil:
		fwd, err = c.ShareMedia(ctx, toPeer, src.Media.MediaID)
	case !src.HasPlaintext():
		return domain.Message{}, ErrNoPlaintext
	default:
		fwd, err = c.Send(ctx, toPeer, src.Text)
	}
	if err != nil {
		return domain.Message{}, err
	}

	c.stateMu.Lock()
	open := c.openPeer
	c.stateMu.Unlock()
	c.unread.OnInbound(toPeer, open)
	return fwd, nil
}

// RegisterMedia records a media reference with the relay so it can be
// shared; the returned id names it in ShareMedia and Provenance calls.
func (c *Client) RegisterMedia(ctx context.Context, mediaType, masterURL string) (string, error) {
	id, err := c.relay.RegisterMedia(ctx, domain.RegisterMediaRequest{
		MediaType: mediaType,
		MasterURL: masterURL,
	})
	if err != nil {
		return "", fmt.Errorf("register media: %w", err)
	}
	return id, nil
}

// ShareMedia distributes registered media to peerID. Media is shared by
// reference and never encrypted; the relay records the hop for provenance.
func (c *Client) ShareMedia(ctx context.Context, peerID, mediaID string) (domain.Message, error) {
	msg := domain.Message{
		CorrelationID: uuid.NewString(),
		SenderID:      c.identity.UserID,
		ReceiverID:    peerID,
		Kind:          domain.KindMedia,
		Media:         &domain.MediaRef{MediaID: mediaID},
		Timestamp:     time.Now().UTC(),
	}
	if err := c.relay.ShareMedia(ctx, domain.ShareRequest{
		CorrelationID: msg.CorrelationID,
		MediaID:       mediaID,
		ReceiverID:    peerID,
	}); err != nil {
		return domain.Message{}, fmt.Errorf("share media %s with %s: %w", mediaID, peerID, err)
	}

	c.stateMu.Lock()
	c.appendLocked(peerID, msg)
	c.stateMu.Unlock()
	return msg, nil
}

// Provenance returns a media item's recorded distribution chain.
func (c *Client) Provenance(ctx context.Context, mediaID string) (domain.Provenance, error) {
	return c.relay.Provenance(ctx, mediaID)
}

// ClearHistory wipes the local cached timeline for peerID. The server copy
// is untouched; a later Open re-fetches it.
func (c *Client) ClearHistory(peerID string) error {
	return c.store.ClearHistory(peerID)
}

// Unread returns a copy of the per-peer unread counters.
func (c *Client) Unread() map[string]int { return c.unread.Counts() }

// Peers lists every peer with a cached public key, with fingerprints for
// out-of-band verification.
func (c *Client) Peers() map[string]string {
	out := make(map[string]string)
	for id, pub := range c.store.PeerKeys() {
		out[id] = crypto.Fingerprint(pub.Slice())
	}
	return out
}

// appendLocked adds msg to peerID's cached timeline. Callers hold stateMu.
func (c *Client) appendLocked(peerID string, msg domain.Message) {
	timeline := append(c.store.History(peerID), msg)
	if err := c.store.SaveHistory(peerID, timeline); err != nil {
		c.log.Warn(context.Background(), "persisting timeline failed", "peer", peerID, "err", err)
	}
}

func decodePeerKey(b64 string) (domain.X25519Public, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return domain.X25519Public{}, fmt.Errorf("peer key encoding: %w", err)
	}
	if len(raw) != 32 {
		return domain.X25519Public{}, fmt.Errorf("peer key length %d", len(raw))
	}
	var pub domain.X25519Public
	copy(pub[:], raw)
	return pub, nil
}

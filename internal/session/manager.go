package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
)

// DefaultAwaitTimeout bounds how long a caller waits for a peer key
// before the secure channel is reported unavailable.
const DefaultAwaitTimeout = 5 * time.Second

// ErrSecureChannelTimeout is returned when a peer's key did not resolve
// within the wait bound. It is an actionable retry, not a crash.
var ErrSecureChannelTimeout = errors.New("secure channel unavailable: peer key did not resolve in time")

// KeyRequester asks the relay to resend a peer's public key. Split out as
// a function type so the manager does not depend on the relay client.
type KeyRequester func(ctx context.Context, peerID string) error

// Manager derives and caches session keys for one local identity.
type Manager struct {
	identity domain.Identity
	store    domain.StateStore
	request  KeyRequester
	log      logging.Logger

	mu      sync.Mutex
	keys    map[string]domain.SessionKey
	waiters map[string][]chan domain.SessionKey
}

// NewManager returns a manager for id. The peer-key cache in store seeds
// synchronous resolution; request fires when an awaited key is absent.
func NewManager(id domain.Identity, store domain.StateStore, request KeyRequester, log logging.Logger) *Manager {
	return &Manager{
		identity: id,
		store:    store,
		request:  request,
		log:      log,
		keys:     make(map[string]domain.SessionKey),
		waiters:  make(map[string][]chan domain.SessionKey),
	}
}

// Resolve returns the session key for peerID if it is cached or derivable
// from a cached peer public key. ok is false when neither holds; that is
// not an error until the caller insists on immediate use.
func (m *Manager) Resolve(peerID string) (domain.SessionKey, bool) {
	m.mu.Lock()
	if key, ok := m.keys[peerID]; ok {
		m.mu.Unlock()
		return key, true
	}
	m.mu.Unlock()

	pub, ok := m.store.PeerKeys()[peerID]
	if !ok {
		return domain.SessionKey{}, false
	}
	key, err := m.DeriveAndCache(peerID, pub)
	if err != nil {
		return domain.SessionKey{}, false
	}
	return key, true
}

// DeriveAndCache computes the session key from the local private key and
// pub, caches it, and wakes every waiter for peerID. Idempotent: the same
// inputs always produce the same key.
func (m *Manager) DeriveAndCache(peerID string, pub domain.X25519Public) (domain.SessionKey, error) {
	key, err := crypto.DeriveSessionKey(m.identity.XPriv, pub)
	if err != nil {
		return domain.SessionKey{}, err
	}

	m.mu.Lock()
	m.keys[peerID] = key
	waiters := m.waiters[peerID]
	delete(m.waiters, peerID)
	m.mu.Unlock()

	for _, w := range waiters {
		w <- key // buffered, never blocks
	}
	return key, nil
}

// AwaitResolve resolves the key for peerID, requesting it from the relay
// and suspending up to timeout when it is not yet available. The wait is
// per-peer and cooperative: other conversations keep processing while a
// caller is parked here. A non-positive timeout uses DefaultAwaitTimeout.
func (m *Manager) AwaitResolve(ctx context.Context, peerID string, timeout time.Duration) (domain.SessionKey, error) {
	if key, ok := m.Resolve(peerID); ok {
		return key, nil
	}
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}

	// Register the waiter before requesting, so a reply racing the
	// request cannot be missed.
	w := make(chan domain.SessionKey, 1)
	m.mu.Lock()
	m.waiters[peerID] = append(m.waiters[peerID], w)
	m.mu.Unlock()
	defer m.dropWaiter(peerID, w)

	if err := m.request(ctx, peerID); err != nil {
		m.log.Warn(ctx, "peer key request failed, still waiting for a broadcast",
			"peer", peerID, "err", err)
	}

	// The key may have resolved between Resolve and registration.
	if key, ok := m.Resolve(peerID); ok {
		return key, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case key := <-w:
		return key, nil
	case <-timer.C:
		return domain.SessionKey{}, ErrSecureChannelTimeout
	case <-ctx.Done():
		return domain.SessionKey{}, ctx.Err()
	}
}

func (m *Manager) dropWaiter(peerID string, w chan domain.SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.waiters[peerID]
	for i, c := range ws {
		if c == w {
			m.waiters[peerID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(m.waiters[peerID]) == 0 {
		delete(m.waiters, peerID)
	}
}

package server

import (
	"sync"
	"time"
)

// DefaultRegistryTTL is how long an announced key stays resolvable
// without a re-announcement.
const DefaultRegistryTTL = 24 * time.Hour

// keyRegistry is the ephemeral map of userID to last-announced public
// key. Announcements overwrite; there is no merging of stale keys.
type keyRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]keyEntry
}

type keyEntry struct {
	publicKey string // base64 raw point, as announced
	at        time.Time
}

func newKeyRegistry(ttl time.Duration) *keyRegistry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &keyRegistry{ttl: ttl, entries: make(map[string]keyEntry)}
}

func (r *keyRegistry) put(userID, publicKey string) {
	r.mu.Lock()
	r.entries[userID] = keyEntry{publicKey: publicKey, at: time.Now()}
	r.mu.Unlock()
}

// get returns the current key for userID, expiring it lazily when the
// TTL has passed.
func (r *keyRegistry) get(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return "", false
	}
	if time.Since(e.at) > r.ttl {
		delete(r.entries, userID)
		return "", false
	}
	return e.publicKey, true
}

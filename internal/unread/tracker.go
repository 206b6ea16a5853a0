// Package unread maintains per-peer unread counters, persisted per local
// identity. A counter increments on inbound traffic for a conversation
// that is not currently open, and is deleted outright (not zeroed) when
// that conversation opens.
package unread

import (
	"context"
	"sync"

	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
)

// Tracker counts unread inbound messages per peer.
type Tracker struct {
	store domain.StateStore
	log   logging.Logger

	mu     sync.Mutex
	counts map[string]int
}

// NewTracker loads the persisted counters from store.
func NewTracker(store domain.StateStore, log logging.Logger) *Tracker {
	return &Tracker{store: store, log: log, counts: store.Unread()}
}

// OnInbound bumps peerID's counter unless that peer's conversation is the
// one currently open. Each inbound message or media event counts one.
func (t *Tracker) OnInbound(peerID, openPeerID string) {
	if peerID == openPeerID {
		return
	}
	t.mu.Lock()
	t.counts[peerID]++
	t.persistLocked()
	t.mu.Unlock()
}

// OnOpen deletes peerID's counter and persists the change.
func (t *Tracker) OnOpen(peerID string) {
	t.mu.Lock()
	delete(t.counts, peerID)
	t.persistLocked()
	t.mu.Unlock()
}

// Count returns peerID's current counter (zero when absent).
func (t *Tracker) Count(peerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[peerID]
}

// Counts returns a copy of all non-zero counters.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

func (t *Tracker) persistLocked() {
	if err := t.store.SaveUnread(t.counts); err != nil {
		t.log.Warn(context.Background(), "persisting unread counters failed", "err", err)
	}
}

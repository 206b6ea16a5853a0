// Package pending buffers inbound ciphertexts that arrive before the
// sender's public key is known. Entries replay in arrival order, exactly
// once, when the key resolves; the bucket is then discarded. An
// unresponsive peer must not grow memory without bound, so each sender's
// buffer is capped and drops its oldest entry on overflow.
package pending

import (
	"sync"

	"cloakchat/internal/domain"
)

// DefaultCap bounds each sender's buffer.
const DefaultCap = 256

// Queue holds per-sender buffers of undecryptable inbound events.
type Queue struct {
	mu        sync.Mutex
	cap       int
	buckets   map[string][]domain.MessageEvent
	requested map[string]bool
}

// NewQueue returns a queue with the given per-sender cap; cap <= 0 uses
// DefaultCap.
func NewQueue(cap int) *Queue {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Queue{
		cap:       cap,
		buckets:   make(map[string][]domain.MessageEvent),
		requested: make(map[string]bool),
	}
}

// Enqueue appends ev to senderID's buffer, dropping the oldest entry when
// the cap is reached. It reports whether the caller should fire a
// public-key request: true only for the first enqueue of an unresolved
// sender, so at most one request goes out per buffered sender.
func (q *Queue) Enqueue(senderID string, ev domain.MessageEvent) (requestKey bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.buckets[senderID]
	if len(b) >= q.cap {
		b = b[1:]
	}
	q.buckets[senderID] = append(b, ev)

	if q.requested[senderID] {
		return false
	}
	q.requested[senderID] = true
	return true
}

// Drain removes and returns senderID's buffered events in arrival order
// and clears the request flag so a later key loss can request again.
func (q *Queue) Drain(senderID string) []domain.MessageEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.buckets[senderID]
	delete(q.buckets, senderID)
	delete(q.requested, senderID)
	return b
}

// Len returns the number of buffered events for senderID.
func (q *Queue) Len(senderID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buckets[senderID])
}

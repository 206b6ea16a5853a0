package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
)

// Bucket per concern; history values are one JSON timeline per peer,
// mirroring the per-conversation blobs the caches replace.
var (
	bucketPeerKeys = []byte("peer_keys")
	bucketHistory  = []byte("history")
	bucketUnread   = []byte("unread")
)

var unreadCountsKey = []byte("counts")

// BoltStateStore keeps the local caches for one identity in a single
// bbolt file. Writes go through bbolt transactions; reads are best-effort
// and degrade to empty results on corrupt values.
type BoltStateStore struct {
	db  *bolt.DB
	log logging.Logger
}

// OpenStateStore opens (creating if needed) the state database at path.
func OpenStateStore(path string, log logging.Logger) (*BoltStateStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPeerKeys, bucketHistory, bucketUnread} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state store: %w", err)
	}
	return &BoltStateStore{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *BoltStateStore) Close() error { return s.db.Close() }

// CachePeerKey stores peerID's public key with overwrite semantics: the
// most recently announced key wins, stale keys are replaced, not merged.
func (s *BoltStateStore) CachePeerKey(peerID string, pub domain.X25519Public) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeerKeys).Put([]byte(peerID), pub.Slice())
	})
}

// PeerKeys returns every cached peer key. Malformed entries are skipped.
func (s *BoltStateStore) PeerKeys() map[string]domain.X25519Public {
	out := make(map[string]domain.X25519Public)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeerKeys).ForEach(func(k, v []byte) error {
			if len(v) != 32 {
				return nil
			}
			var pub domain.X25519Public
			copy(pub[:], v)
			out[string(k)] = pub
			return nil
		})
	})
	if err != nil {
		s.log.Warn(context.Background(), "reading peer keys failed", "err", err)
		return map[string]domain.X25519Public{}
	}
	return out
}

// SaveHistory replaces the cached timeline for peerID.
func (s *BoltStateStore) SaveHistory(peerID string, msgs []domain.Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).Put([]byte(peerID), raw)
	})
}

// History returns the cached timeline for peerID; corrupt storage yields
// an empty timeline.
func (s *BoltStateStore) History(peerID string) []domain.Message {
	var msgs []domain.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHistory).Get([]byte(peerID))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &msgs); err != nil {
			s.log.Warn(context.Background(), "cached history corrupt, treating as empty",
				"peer", peerID, "err", err)
			msgs = nil
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return msgs
}

// ClearHistory drops the cached timeline for peerID.
func (s *BoltStateStore) ClearHistory(peerID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).Delete([]byte(peerID))
	})
}

// SaveUnread replaces the unread counters.
func (s *BoltStateStore) SaveUnread(counts map[string]int) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUnread).Put(unreadCountsKey, raw)
	})
}

// Unread returns the persisted counters; corrupt storage yields an empty map.
func (s *BoltStateStore) Unread() map[string]int {
	counts := make(map[string]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketUnread).Get(unreadCountsKey)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &counts); err != nil {
			s.log.Warn(context.Background(), "unread counters corrupt, resetting", "err", err)
			counts = make(map[string]int)
		}
		return nil
	})
	if err != nil {
		return map[string]int{}
	}
	return counts
}

// Compile-time assertion that BoltStateStore implements domain.StateStore.
var _ domain.StateStore = (*BoltStateStore)(nil)

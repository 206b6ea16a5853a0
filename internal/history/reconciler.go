// Package history reconciles the two sources of truth for a
// conversation's timeline: the server's message history, authoritative
// for existence, order and ids, and the local cache, authoritative for
// plaintext that was already decrypted. A ciphertext the server returns
// is never re-decrypted when the cache already holds its plaintext.
package history

import (
	"context"
	"errors"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
)

// Reconciler merges and decrypts timelines and writes the result back to
// the local cache as the new baseline.
type Reconciler struct {
	store domain.StateStore
	log   logging.Logger
}

// NewReconciler returns a reconciler persisting through store.
func NewReconciler(store domain.StateStore, log logging.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// MergeServerAndLocal merges server history with the locally cached
// timeline. Server order is preserved; for each server message whose id
// has usable cached plaintext, the plaintext is substituted and the entry
// marked decrypted. Cached entries without a server id (optimistic sends
// not yet round-tripped) are appended after the last server-confirmed
// entry, never interleaved. The merge is idempotent.
func (r *Reconciler) MergeServerAndLocal(server, local []domain.Message) []domain.Message {
	cached := make(map[string]domain.Message, len(local))
	for _, m := range local {
		if m.ID != "" {
			cached[m.ID] = m
		}
	}

	merged := make([]domain.Message, 0, len(server)+len(local))
	for _, sm := range server {
		if stored, ok := cached[sm.ID]; ok && stored.HasPlaintext() {
			sm.Text = stored.Text
			sm.Decrypted = true
			sm.Kind = domain.KindText
		}
		merged = append(merged, sm)
	}

	for _, m := range local {
		if m.ID == "" {
			merged = append(merged, m)
		}
	}
	return merged
}

// DecryptRemaining attempts to decrypt every still-undecrypted non-media
// entry. Without a session key, entries are labeled rather than failed;
// with one, a per-entry authentication failure labels that entry as
// undecryptable under the current key and the batch continues. The
// resulting timeline is persisted as peerID's new cache baseline.
// Ciphertext is retained on labeled entries, so re-running with a later
// key retries them; re-running on a resolved timeline is a no-op beyond
// re-persisting identical content.
func (r *Reconciler) DecryptRemaining(peerID string, merged []domain.Message, key domain.SessionKey, haveKey bool) []domain.Message {
	out := make([]domain.Message, 0, len(merged))
	for _, m := range merged {
		out = append(out, r.decryptOne(m, key, haveKey))
	}

	if err := r.store.SaveHistory(peerID, out); err != nil {
		r.log.Warn(context.Background(), "persisting reconciled timeline failed",
			"peer", peerID, "err", err)
	}
	return out
}

func (r *Reconciler) decryptOne(m domain.Message, key domain.SessionKey, haveKey bool) domain.Message {
	if m.Kind == domain.KindMedia || m.Decrypted || m.Ciphertext == "" {
		return m
	}
	if !haveKey {
		m.Kind = domain.KindText
		m.Text = domain.LabelKeyUnavailable
		m.Decrypted = false
		return m
	}

	plain, err := crypto.Decrypt(m.Ciphertext, key)
	if err != nil {
		if !errors.Is(err, crypto.ErrDecryptionFailed) {
			r.log.Warn(context.Background(), "unexpected decrypt error", "message", m.ID, "err", err)
		}
		// Old or incompatible key: keep the entry, label it, never drop it.
		m.Kind = domain.KindUndecryptable
		m.Text = domain.LabelUndecryptable
		m.Decrypted = false
		return m
	}
	m.Kind = domain.KindText
	m.Text = string(plain)
	m.Decrypted = true
	return m
}

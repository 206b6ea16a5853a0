package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/history"
	"cloakchat/internal/logging"
	"cloakchat/internal/store"
)

func newReconciler(t *testing.T) (*history.Reconciler, *store.BoltStateStore) {
	t.Helper()
	st, err := store.OpenStateStore(filepath.Join(t.TempDir(), "state.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return history.NewReconciler(st, logging.Nop()), st
}

func sessionKey(t *testing.T) domain.SessionKey {
	t.Helper()
	alicePriv, _, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, bobPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	key, err := crypto.DeriveSessionKey(alicePriv, bobPub)
	require.NoError(t, err)
	return key
}

func serverText(id, ct string, at time.Time) domain.Message {
	return domain.Message{
		ID: id, SenderID: "bob", ReceiverID: "alice",
		Kind: domain.KindText, Ciphertext: ct, Timestamp: at,
	}
}

func TestMergePrefersCachedPlaintext(t *testing.T) {
	r, _ := newReconciler(t)
	now := time.Now()

	server := []domain.Message{serverText("42", "aaaa:bbbb", now)}
	local := []domain.Message{
		{ID: "42", Kind: domain.KindText, Text: "hi", Decrypted: true, Timestamp: now},
	}

	merged := r.MergeServerAndLocal(server, local)
	require.Len(t, merged, 1)
	assert.Equal(t, "hi", merged[0].Text, "cached plaintext substitutes, no redecryption")
	assert.True(t, merged[0].Decrypted)
}

func TestMergeIgnoresCachedLabels(t *testing.T) {
	r, _ := newReconciler(t)
	now := time.Now()

	server := []domain.Message{serverText("42", "aaaa:bbbb", now)}
	local := []domain.Message{
		{ID: "42", Kind: domain.KindUndecryptable, Text: domain.LabelUndecryptable, Timestamp: now},
	}

	merged := r.MergeServerAndLocal(server, local)
	require.Len(t, merged, 1)
	assert.False(t, merged[0].Decrypted, "an error placeholder is not usable plaintext")
	assert.Equal(t, "aaaa:bbbb", merged[0].Ciphertext)
}

func TestMergeAppendsOptimisticEntriesAfterServerHistory(t *testing.T) {
	r, _ := newReconciler(t)
	now := time.Now()

	server := []domain.Message{
		serverText("1", "a:a", now.Add(-2*time.Minute)),
		serverText("2", "b:b", now.Add(-time.Minute)),
	}
	local := []domain.Message{
		{CorrelationID: "c-1", SenderID: "alice", Kind: domain.KindText,
			Text: "on its way", Decrypted: true, Timestamp: now},
	}

	merged := r.MergeServerAndLocal(server, local)
	require.Len(t, merged, 3)
	assert.Equal(t, "2", merged[1].ID)
	assert.Equal(t, "c-1", merged[2].CorrelationID, "optimistic entries come last")
}

func TestMergeIsIdempotent(t *testing.T) {
	r, _ := newReconciler(t)
	now := time.Now()

	server := []domain.Message{serverText("1", "a:a", now)}
	local := []domain.Message{
		{ID: "1", Kind: domain.KindText, Text: "hello", Decrypted: true, Timestamp: now},
		{CorrelationID: "c-9", Kind: domain.KindText, Text: "pending", Decrypted: true, Timestamp: now},
	}

	once := r.MergeServerAndLocal(server, local)
	twice := r.MergeServerAndLocal(server, once)
	assert.Equal(t, once, twice)
}

func TestDecryptRemainingWithoutKeyLabelsEntries(t *testing.T) {
	r, st := newReconciler(t)

	merged := []domain.Message{serverText("1", "aaaa:bbbb", time.Now())}
	final := r.DecryptRemaining("bob", merged, domain.SessionKey{}, false)

	require.Len(t, final, 1)
	assert.Equal(t, domain.LabelKeyUnavailable, final[0].Text)
	assert.False(t, final[0].Decrypted)
	assert.Equal(t, "aaaa:bbbb", final[0].Ciphertext, "ciphertext is kept for retries")

	cached := st.History("bob")
	require.Len(t, cached, 1, "the result becomes the new cache baseline")
}

func TestDecryptRemainingDecryptsAndLabelsMixedBatch(t *testing.T) {
	r, _ := newReconciler(t)
	key := sessionKey(t)

	good, err := crypto.Encrypt([]byte("hello"), key)
	require.NoError(t, err)
	oldKey := sessionKey(t)
	stale, err := crypto.Encrypt([]byte("ancient"), oldKey)
	require.NoError(t, err)

	merged := []domain.Message{
		serverText("1", good, time.Now()),
		serverText("2", stale, time.Now()),
		{ID: "3", SenderID: "bob", Kind: domain.KindMedia,
			Media: &domain.MediaRef{MediaID: "m1", URL: "/media/x", MediaType: "image"}},
	}

	final := r.DecryptRemaining("bob", merged, key, true)
	require.Len(t, final, 3)

	assert.Equal(t, "hello", final[0].Text)
	assert.True(t, final[0].Decrypted)

	assert.Equal(t, domain.KindUndecryptable, final[1].Kind,
		"a wrong-key entry is labeled, the batch continues")
	assert.Equal(t, domain.LabelUndecryptable, final[1].Text)

	assert.Equal(t, domain.KindMedia, final[2].Kind, "media passes through untouched")
}

func TestDecryptRemainingIsIdempotent(t *testing.T) {
	r, _ := newReconciler(t)
	key := sessionKey(t)

	ct, err := crypto.Encrypt([]byte("hello"), key)
	require.NoError(t, err)
	merged := []domain.Message{serverText("1", ct, time.Now())}

	once := r.DecryptRemaining("bob", merged, key, true)
	twice := r.DecryptRemaining("bob", once, key, true)
	assert.Equal(t, once, twice)
}

func TestLabeledEntryRetriesUnderLaterKey(t *testing.T) {
	r, _ := newReconciler(t)
	key := sessionKey(t)

	ct, err := crypto.Encrypt([]byte("finally"), key)
	require.NoError(t, err)
	merged := []domain.Message{serverText("1", ct, time.Now())}

	labeled := r.DecryptRemaining("bob", merged, domain.SessionKey{}, false)
	require.Equal(t, domain.LabelKeyUnavailable, labeled[0].Text)

	final := r.DecryptRemaining("bob", labeled, key, true)
	assert.Equal(t, "finally", final[0].Text)
	assert.True(t, final[0].Decrypted)
}

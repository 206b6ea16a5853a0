package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
	"cloakchat/internal/store"
)

func TestIdentityLoadOrCreatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := store.NewIdentityFileStore(dir, logging.Nop())

	id1, regenerated, err := s.LoadOrCreate("alice", "pass")
	require.NoError(t, err)
	assert.False(t, regenerated)
	assert.Equal(t, "alice", id1.UserID)

	s2 := store.NewIdentityFileStore(dir, logging.Nop())
	id2, regenerated, err := s2.LoadOrCreate("alice", "pass")
	require.NoError(t, err)
	assert.False(t, regenerated)
	assert.Equal(t, id1, id2, "reloading must return the same key pair")
}

func TestIdentityRegeneratesOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := store.NewIdentityFileStore(dir, logging.Nop())

	id1, _, err := s.LoadOrCreate("alice", "pass")
	require.NoError(t, err)

	// Corrupt the sealed file.
	path := filepath.Join(dir, "identity-alice.enc")
	require.NoError(t, os.WriteFile(path, []byte("not an envelope"), 0o600))

	id2, regenerated, err := s.LoadOrCreate("alice", "pass")
	require.NoError(t, err, "unreadable storage must not fail outward")
	assert.True(t, regenerated, "replacement of an unreadable identity must be reported")
	assert.NotEqual(t, id1.XPriv, id2.XPriv)
}

func TestIdentityRegeneratesOnDeletedFile(t *testing.T) {
	dir := t.TempDir()
	s := store.NewIdentityFileStore(dir, logging.Nop())

	id1, _, err := s.LoadOrCreate("alice", "pass")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "identity-alice.enc")))

	id2, regenerated, err := s.LoadOrCreate("alice", "pass")
	require.NoError(t, err)
	assert.False(t, regenerated, "nothing previously persisted was lost silently")
	assert.NotEqual(t, id1.XPriv, id2.XPriv)
}

func openState(t *testing.T) *store.BoltStateStore {
	t.Helper()
	s, err := store.OpenStateStore(filepath.Join(t.TempDir(), "state.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPeerKeyOverwrite(t *testing.T) {
	s := openState(t)

	var k1, k2 domain.X25519Public
	k1[0], k2[0] = 1, 2

	require.NoError(t, s.CachePeerKey("bob", k1))
	require.NoError(t, s.CachePeerKey("bob", k2))

	keys := s.PeerKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, k2, keys["bob"], "the most recently announced key wins")
}

func TestHistoryRoundTripAndClear(t *testing.T) {
	s := openState(t)

	msgs := []domain.Message{
		{ID: "1", SenderID: "bob", ReceiverID: "alice", Kind: domain.KindText,
			Text: "hi", Decrypted: true, Timestamp: time.Now().UTC().Truncate(time.Second)},
	}
	require.NoError(t, s.SaveHistory("bob", msgs))

	got := s.History("bob")
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
	assert.True(t, got[0].Decrypted)

	require.NoError(t, s.ClearHistory("bob"))
	assert.Empty(t, s.History("bob"))
}

func TestUnreadRoundTrip(t *testing.T) {
	s := openState(t)

	assert.Empty(t, s.Unread())
	require.NoError(t, s.SaveUnread(map[string]int{"bob": 3}))
	assert.Equal(t, map[string]int{"bob": 3}, s.Unread())
}

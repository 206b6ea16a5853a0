package session_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
	"cloakchat/internal/session"
	"cloakchat/internal/store"
)

func newIdentity(t *testing.T, userID string) domain.Identity {
	t.Helper()
	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	return domain.Identity{UserID: userID, XPriv: priv, XPub: pub}
}

func newState(t *testing.T) *store.BoltStateStore {
	t.Helper()
	s, err := store.OpenStateStore(filepath.Join(t.TempDir(), "state.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func noRequest(context.Context, string) error { return nil }

func TestResolveDerivesFromCachedPeerKey(t *testing.T) {
	alice := newIdentity(t, "alice")
	bob := newIdentity(t, "bob")

	state := newState(t)
	require.NoError(t, state.CachePeerKey("bob", bob.XPub))

	m := session.NewManager(alice, state, noRequest, logging.Nop())

	key, ok := m.Resolve("bob")
	require.True(t, ok)

	want, err := crypto.DeriveSessionKey(alice.XPriv, bob.XPub)
	require.NoError(t, err)
	assert.Equal(t, want, key)

	// Second resolve hits the cache and must agree.
	again, ok := m.Resolve("bob")
	require.True(t, ok)
	assert.Equal(t, key, again)
}

func TestResolveAbsentWithoutPeerKey(t *testing.T) {
	m := session.NewManager(newIdentity(t, "alice"), newState(t), noRequest, logging.Nop())
	_, ok := m.Resolve("bob")
	assert.False(t, ok)
}

func TestAwaitResolveFulfilledByAnnouncement(t *testing.T) {
	alice := newIdentity(t, "alice")
	bob := newIdentity(t, "bob")

	var requests atomic.Int32
	m := session.NewManager(alice, newState(t), func(ctx context.Context, peerID string) error {
		requests.Add(1)
		assert.Equal(t, "bob", peerID)
		return nil
	}, logging.Nop())

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, err := m.DeriveAndCache("bob", bob.XPub)
		assert.NoError(t, err)
	}()

	key, err := m.AwaitResolve(context.Background(), "bob", time.Second)
	require.NoError(t, err)

	want, err := crypto.DeriveSessionKey(alice.XPriv, bob.XPub)
	require.NoError(t, err)
	assert.Equal(t, want, key)
	assert.Equal(t, int32(1), requests.Load(), "one await fires one key request")
}

func TestAwaitResolveTimesOut(t *testing.T) {
	m := session.NewManager(newIdentity(t, "alice"), newState(t), noRequest, logging.Nop())

	start := time.Now()
	_, err := m.AwaitResolve(context.Background(), "bob", 80*time.Millisecond)
	require.ErrorIs(t, err, session.ErrSecureChannelTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitResolveHonoursContextCancel(t *testing.T) {
	m := session.NewManager(newIdentity(t, "alice"), newState(t), noRequest, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := m.AwaitResolve(ctx, "bob", 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeriveAndCacheIsDeterministic(t *testing.T) {
	alice := newIdentity(t, "alice")
	bob := newIdentity(t, "bob")

	m := session.NewManager(alice, newState(t), noRequest, logging.Nop())

	k1, err := m.DeriveAndCache("bob", bob.XPub)
	require.NoError(t, err)
	k2, err := m.DeriveAndCache("bob", bob.XPub)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "re-deriving must not renegotiate or change the key")
}

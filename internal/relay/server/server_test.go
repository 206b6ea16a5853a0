package server_test

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloakchat/internal/domain"
	"cloakchat/internal/logging"
	"cloakchat/internal/relay"
	"cloakchat/internal/relay/server"
)

var secret = []byte("test-secret")

func newRelay(t *testing.T, ttl time.Duration) *httptest.Server {
	t.Helper()
	srv := server.New(server.Config{JWTSecret: secret, RegistryTTL: ttl}, logging.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func client(t *testing.T, ts *httptest.Server, userID string) *relay.HTTP {
	t.Helper()
	token, err := relay.MintToken(userID, secret, time.Hour)
	require.NoError(t, err)
	return relay.NewHTTP(ts.URL, token, ts.Client())
}

func pub(b byte) domain.X25519Public {
	var p domain.X25519Public
	p[0] = b
	return p
}

func TestRejectsMissingOrInvalidToken(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()

	noToken := relay.NewHTTP(ts.URL, "", ts.Client())
	err := noToken.AnnouncePublicKey(ctx, pub(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	badToken := relay.NewHTTP(ts.URL, "garbage", ts.Client())
	err = badToken.RequestPeerKey(ctx, "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAnnounceBroadcastsToOtherInboxes(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	// Bob makes first contact so he has an inbox to broadcast into.
	_, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, alice.AnnouncePublicKey(ctx, pub(7)))

	evs, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, domain.EventPeerKey, evs[0].Type)
	assert.Equal(t, "alice", evs[0].PeerKey.PeerID)

	// The announcer does not hear their own broadcast.
	own, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestKeyRequestReturnsLastAnnouncedKey(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	require.NoError(t, bob.AnnouncePublicKey(ctx, pub(1)))
	require.NoError(t, bob.AnnouncePublicKey(ctx, pub(2))) // re-announce overwrites

	require.NoError(t, alice.RequestPeerKey(ctx, "bob"))
	evs, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "bob", evs[0].PeerKey.PeerID)
	want := base64.StdEncoding.EncodeToString(pub(2).Slice())
	assert.Equal(t, want, evs[0].PeerKey.PublicKey, "the most recent announcement wins")
}

func TestKeyRequestForUnknownPeerProducesNoEvent(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")

	require.NoError(t, alice.RequestPeerKey(ctx, "nobody"))
	evs, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestRegistryEntriesExpire(t *testing.T) {
	ts := newRelay(t, 50*time.Millisecond)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	require.NoError(t, bob.AnnouncePublicKey(ctx, pub(1)))
	time.Sleep(80 * time.Millisecond)

	require.NoError(t, alice.RequestPeerKey(ctx, "bob"))
	evs, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, evs, "expired keys resolve like never-announced ones")
}

func TestSendMessageDeliversAndAcks(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	require.NoError(t, alice.SendMessage(ctx, domain.SendRequest{
		CorrelationID: "c-1", Ciphertext: "n:c", ReceiverID: "bob",
	}))

	evs, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, domain.EventMessage, evs[0].Type)
	assert.Equal(t, "alice", evs[0].Message.SenderID)
	assert.Equal(t, "n:c", evs[0].Message.Ciphertext)
	assert.NotEmpty(t, evs[0].Message.MessageID)

	acks, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acks, 1)
	require.Equal(t, domain.EventMessageSent, acks[0].Type)
	assert.Equal(t, "c-1", acks[0].MessageSent.CorrelationID)
	assert.Equal(t, evs[0].Message.MessageID, acks[0].MessageSent.MessageID)
}

func TestEventsRemainUntilAcked(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	require.NoError(t, alice.SendMessage(ctx, domain.SendRequest{
		CorrelationID: "c-1", Ciphertext: "n:c", ReceiverID: "bob",
	}))

	first, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	second, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second, "unacked events are redelivered")

	require.NoError(t, bob.AckEvents(ctx, len(first)))
	third, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestHistoryIsPairScopedAndAscending(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")
	carol := client(t, ts, "carol")

	require.NoError(t, alice.SendMessage(ctx, domain.SendRequest{Ciphertext: "1:1", ReceiverID: "bob"}))
	require.NoError(t, bob.SendMessage(ctx, domain.SendRequest{Ciphertext: "2:2", ReceiverID: "alice"}))
	require.NoError(t, carol.SendMessage(ctx, domain.SendRequest{Ciphertext: "3:3", ReceiverID: "alice"}))

	msgs, err := alice.History(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2, "carol's message is outside the pair")
	assert.Equal(t, "1:1", msgs[0].Ciphertext)
	assert.Equal(t, "2:2", msgs[1].Ciphertext)
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp))

	// Both directions see the same history.
	fromBob, err := bob.History(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, fromBob, 2)
}

func TestMediaShareRecordsProvenance(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	mediaID, err := alice.RegisterMedia(ctx, domain.RegisterMediaRequest{MediaType: "image"})
	require.NoError(t, err)
	require.NotEmpty(t, mediaID)

	require.NoError(t, alice.ShareMedia(ctx, domain.ShareRequest{
		CorrelationID: "m-1", MediaID: mediaID, ReceiverID: "bob",
	}))
	require.NoError(t, bob.ShareMedia(ctx, domain.ShareRequest{
		CorrelationID: "m-2", MediaID: mediaID, ReceiverID: "carol",
	}))

	p, err := alice.Provenance(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.CreatorID)
	require.Len(t, p.Hops, 2, "hops accumulate in share order")
	assert.Equal(t, "bob", p.Hops[0].RecipientID)
	assert.Equal(t, "alice", p.Hops[0].FromUserID)
	assert.Equal(t, "carol", p.Hops[1].RecipientID)
	assert.Equal(t, "bob", p.Hops[1].FromUserID)

	evs, err := bob.FetchEvents(ctx, 0)
	require.NoError(t, err)
	// Bob got the media event plus his own media-sent ack.
	var kinds []domain.EventType
	for _, e := range evs {
		kinds = append(kinds, e.Type)
	}
	assert.Contains(t, kinds, domain.EventMedia)
	assert.Contains(t, kinds, domain.EventMediaSent)
}

func TestShareUnknownMediaYieldsErrorEvent(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")

	err := alice.ShareMedia(ctx, domain.ShareRequest{MediaID: "missing", ReceiverID: "bob"})
	require.Error(t, err)

	evs, err := alice.FetchEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, domain.EventError, evs[0].Type)
	assert.Contains(t, evs[0].Error.Error, "missing")
}

func TestFetchEventsHonoursLimit(t *testing.T) {
	ts := newRelay(t, 0)
	ctx := context.Background()
	alice := client(t, ts, "alice")
	bob := client(t, ts, "bob")

	for i := 0; i < 3; i++ {
		require.NoError(t, alice.SendMessage(ctx, domain.SendRequest{Ciphertext: "n:c", ReceiverID: "bob"}))
	}

	evs, err := bob.FetchEvents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

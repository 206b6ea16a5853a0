package pending_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"cloakchat/internal/domain"
	"cloakchat/internal/pending"
)

func ev(id string) domain.MessageEvent {
	return domain.MessageEvent{MessageID: id, SenderID: "bob", Ciphertext: "x:y"}
}

func TestEnqueueRequestsKeyOncePerSender(t *testing.T) {
	q := pending.NewQueue(0)

	assert.True(t, q.Enqueue("bob", ev("1")), "first enqueue triggers a key request")
	assert.False(t, q.Enqueue("bob", ev("2")))
	assert.False(t, q.Enqueue("bob", ev("3")))
	assert.True(t, q.Enqueue("carol", ev("4")), "requests are per sender")
}

func TestDrainReturnsArrivalOrderAndClears(t *testing.T) {
	q := pending.NewQueue(0)
	q.Enqueue("bob", ev("1"))
	q.Enqueue("bob", ev("2"))
	q.Enqueue("bob", ev("3"))

	got := q.Drain("bob")
	assert.Equal(t, []string{"1", "2", "3"}, ids(got))

	assert.Empty(t, q.Drain("bob"), "drain discards the bucket")
	assert.Zero(t, q.Len("bob"))
	assert.True(t, q.Enqueue("bob", ev("5")), "a drained sender may request again")
}

func TestOverflowDropsOldest(t *testing.T) {
	q := pending.NewQueue(3)
	for i := 1; i <= 5; i++ {
		q.Enqueue("bob", ev(strconv.Itoa(i)))
	}

	assert.Equal(t, []string{"3", "4", "5"}, ids(q.Drain("bob")))
}

func ids(evs []domain.MessageEvent) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.MessageID)
	}
	return out
}

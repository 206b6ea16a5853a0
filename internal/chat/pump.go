package chat

import (
	"context"
	"time"

	"cloakchat/internal/crypto"
	"cloakchat/internal/domain"
)

const (
	backoffStart = 500 * time.Millisecond
	backoffMax   = 30 * time.Second
)

// Run announces our key, then pumps inbox events until ctx is cancelled.
// Fetch failures back off exponentially; after the relay comes back the
// key is re-announced before pumping resumes, because the server-side
// registry may have restarted empty in the meantime.
func (c *Client) Run(ctx context.Context) error {
	backoff := backoffStart
	needAnnounce := true

	for {
		if needAnnounce {
			if err := c.Announce(ctx); err != nil {
				c.log.Warn(ctx, "announce failed, retrying", "err", err, "backoff", backoff)
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff = min(backoff*2, backoffMax)
				continue
			}
			needAnnounce = false
			backoff = backoffStart
		}

		if _, err := c.PumpOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn(ctx, "event fetch failed, backing off", "err", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, backoffMax)
			needAnnounce = true
			continue
		}
		backoff = backoffStart

		if !sleep(ctx, c.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// PumpOnce fetches pending inbox events, dispatches them, and acks the
// fetched count. Dispatch never fails a batch: a bad event is logged and
// still acked, because redelivering it cannot make it better. Returns how
// many events were handled.
func (c *Client) PumpOnce(ctx context.Context) (int, error) {
	events, err := c.relay.FetchEvents(ctx, c.cfg.FetchLimit)
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		c.dispatch(ctx, ev)
	}
	if len(events) > 0 {
		if err := c.relay.AckEvents(ctx, len(events)); err != nil {
			// The events were handled; redelivery is deduped by message id.
			c.log.Warn(ctx, "ack failed, expecting redelivery", "count", len(events), "err", err)
		}
	}
	return len(events), nil
}

func (c *Client) dispatch(ctx context.Context, ev domain.Event) {
	switch {
	case ev.Type == domain.EventPeerKey && ev.PeerKey != nil:
		c.onPeerKey(ctx, *ev.PeerKey)
	case ev.Type == domain.EventMessage && ev.Message != nil:
		c.onMessage(ctx, *ev.Message)
	case ev.Type == domain.EventMessageSent && ev.MessageSent != nil:
		c.onMessageSent(*ev.MessageSent)
	case ev.Type == domain.EventMedia && ev.Media != nil:
		c.onMedia(*ev.Media)
	case ev.Type == domain.EventMediaSent && ev.MediaSent != nil:
		c.onMediaSent(*ev.MediaSent)
	case ev.Type == domain.EventError && ev.Error != nil:
		c.log.Warn(ctx, "relay reported an error", "err", ev.Error.Error)
	default:
		c.log.Debug(ctx, "ignoring malformed event", "type", ev.Type)
	}
}

// onPeerKey caches the announced key, derives the session key (waking any
// Send parked on it), replays ciphertexts buffered for that sender, and
// re-decrypts the open timeline when it was waiting on this key.
func (c *Client) onPeerKey(ctx context.Context, ev domain.PeerKeyEvent) {
	pub, err := decodePeerKey(ev.PublicKey)
	if err != nil {
		c.log.Warn(ctx, "discarding bad peer key event", "peer", ev.PeerID, "err", err)
		return
	}
	if err := c.store.CachePeerKey(ev.PeerID, pub); err != nil {
		c.log.Warn(ctx, "caching peer key failed", "peer", ev.PeerID, "err", err)
	}
	if _, err := c.sessions.DeriveAndCache(ev.PeerID, pub); err != nil {
		c.log.Error(ctx, "session key derivation failed", "peer", ev.PeerID, "err", err)
		return
	}
	c.log.Debug(ctx, "session established", "peer", ev.PeerID)

	for _, buffered := range c.pending.Drain(ev.PeerID) {
		c.onMessage(ctx, buffered)
	}

	c.stateMu.Lock()
	open := c.openPeer
	c.stateMu.Unlock()
	if open == ev.PeerID {
		c.redecryptOpen(ev.PeerID)
	}
}

// onMessage handles one inbound ciphertext. Redeliveries are dropped by
// message id. Without a sender key the event is buffered and, for the
// first buffered message of that sender, a key request goes out.
func (c *Client) onMessage(ctx context.Context, ev domain.MessageEvent) {
	c.stateMu.Lock()
	if _, dup := c.seen[ev.MessageID]; dup {
		c.stateMu.Unlock()
		return
	}
	c.stateMu.Unlock()

	key, ok := c.sessions.Resolve(ev.SenderID)
	if !ok {
		if c.pending.Enqueue(ev.SenderID, ev) {
			if err := c.relay.RequestPeerKey(ctx, ev.SenderID); err != nil {
				c.log.Warn(ctx, "peer key request failed", "peer", ev.SenderID, "err", err)
			}
		}
		return
	}

	msg := domain.Message{
		ID:         ev.MessageID,
		SenderID:   ev.SenderID,
		ReceiverID: ev.ReceiverID,
		Ciphertext: ev.Ciphertext,
		Timestamp:  ev.Timestamp,
	}
	plain, err := crypto.Decrypt(ev.Ciphertext, key)
	if err != nil {
		c.log.Warn(ctx, "inbound message failed authentication", "peer", ev.SenderID, "message", ev.MessageID)
		msg.Kind = domain.KindUndecryptable
		msg.Text = domain.LabelUndecryptable
	} else {
		msg.Kind = domain.KindText
		msg.Text = string(plain)
		msg.Decrypted = true
	}

	c.stateMu.Lock()
	c.seen[ev.MessageID] = struct{}{}
	c.appendLocked(ev.SenderID, msg)
	open := c.openPeer
	c.stateMu.Unlock()

	c.unread.OnInbound(ev.SenderID, open)
	if c.notify != nil {
		c.notify(ev.SenderID, msg)
	}
}

// onMessageSent merges the server id into the optimistic entry with the
// matching correlation id. Redelivered acks find the id already set and
// change nothing.
func (c *Client) onMessageSent(ev domain.MessageSentEvent) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.seen[ev.MessageID] = struct{}{}
	c.confirmLocked(ev.ReceiverID, ev.CorrelationID, ev.MessageID)
}

func (c *Client) onMedia(ev domain.MediaEvent) {
	c.stateMu.Lock()
	if _, dup := c.seen[ev.MessageID]; dup {
		c.stateMu.Unlock()
		return
	}
	msg := domain.Message{
		ID:         ev.MessageID,
		SenderID:   ev.SenderID,
		ReceiverID: ev.ReceiverID,
		Kind:       domain.KindMedia,
		Media: &domain.MediaRef{
			MediaID:   ev.MediaID,
			URL:       ev.URL,
			MediaType: ev.MediaType,
		},
		Timestamp: ev.Timestamp,
	}
	c.seen[ev.MessageID] = struct{}{}
	c.appendLocked(ev.SenderID, msg)
	open := c.openPeer
	c.stateMu.Unlock()

	c.unread.OnInbound(ev.SenderID, open)
	if c.notify != nil {
		c.notify(ev.SenderID, msg)
	}
}

func (c *Client) onMediaSent(ev domain.MediaSentEvent) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.seen[ev.MessageID] = struct{}{}
	c.confirmLocked(ev.ReceiverID, ev.CorrelationID, ev.MessageID)
}

// confirmLocked sets the server id on the optimistic entry matching
// correlationID in the peerID timeline. Callers hold stateMu.
func (c *Client) confirmLocked(peerID, correlationID, messageID string) {
	if correlationID == "" {
		return
	}
	timeline := c.store.History(peerID)
	for i := range timeline {
		if timeline[i].CorrelationID == correlationID {
			if timeline[i].ID == "" {
				timeline[i].ID = messageID
				if err := c.store.SaveHistory(peerID, timeline); err != nil {
					c.log.Warn(context.Background(), "persisting send ack failed", "peer", peerID, "err", err)
				}
			}
			return
		}
	}
}

// redecryptOpen retries the open timeline's labeled entries now that a
// (new) session key exists.
func (c *Client) redecryptOpen(peerID string) {
	key, haveKey := c.sessions.Resolve(peerID)
	if !haveKey {
		return
	}
	c.stateMu.Lock()
	c.recon.DecryptRemaining(peerID, c.store.History(peerID), key, true)
	c.stateMu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

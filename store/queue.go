package store

import (
	"context"

	"github.com/axmq/corebroker/message"
)

// Backlog is the per-client offline-message queue for persistent sessions
// (spec §3 QueuedMessages, §4.6 "queued_messages: map<client-id →
// deque<OutboundPublish>> bounded by max_store_msgs_per_client"). It sits on
// top of a generic Store[[]QueuedMessage] so the broker can pick an
// in-memory, Pebble, or Redis backend without changing call sites.
type Backlog struct {
	backing Store[[]QueuedMessage]
	max     int
	seq     uint64
}

// NewBacklog wraps backing with a drop-oldest-on-overflow policy bounded by
// max entries per client.
func NewBacklog(backing Store[[]QueuedMessage], max int) *Backlog {
	return &Backlog{backing: backing, max: max}
}

// Append adds one message to a client's queue, evicting the oldest entry if
// the queue is already at max (spec §3: "overflow drops the oldest").
func (b *Backlog) Append(ctx context.Context, clientID string, msg *message.Outbound) error {
	queue, err := b.backing.Load(ctx, clientID)
	if err != nil && err != ErrNotFound {
		return err
	}

	b.seq++
	queue = append(queue, QueuedMessage{
		Seq:            b.seq,
		Topic:          msg.Topic,
		Payload:        msg.Payload,
		QoS:            msg.QoS,
		Retain:         msg.Retain,
		Properties:     msg.Properties,
		SubscriptionID: msg.SubscriptionID,
		HasSubID:       msg.HasSubID,
		CreatedAt:      msg.CreatedAt,
		ExpiryInterval: msg.ExpiryInterval,
		ExpirySet:      msg.ExpirySet,
	})

	if b.max > 0 && len(queue) > b.max {
		queue = queue[len(queue)-b.max:]
	}

	return b.backing.Save(ctx, clientID, queue)
}

// Drain returns a client's queued messages in arrival order and clears the
// queue (spec §4.6 Connect handling step 5: "drain queued_messages[client-id]
// into the new session's outbound channel in arrival order").
func (b *Backlog) Drain(ctx context.Context, clientID string) ([]*message.Outbound, error) {
	queue, err := b.backing.Load(ctx, clientID)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := b.backing.Delete(ctx, clientID); err != nil {
		return nil, err
	}

	out := make([]*message.Outbound, 0, len(queue))
	for _, q := range queue {
		out = append(out, queuedToOutbound(q))
	}
	return out, nil
}

// Discard drops a client's queue outright, e.g. when its persistent session
// expires before reconnecting (spec §4.6 sweeper).
func (b *Backlog) Discard(ctx context.Context, clientID string) error {
	if err := b.backing.Delete(ctx, clientID); err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

func queuedToOutbound(q QueuedMessage) *message.Outbound {
	return &message.Outbound{
		Topic:          q.Topic,
		Payload:        q.Payload,
		QoS:            q.QoS,
		Retain:         q.Retain,
		Properties:     q.Properties,
		SubscriptionID: q.SubscriptionID,
		HasSubID:       q.HasSubID,
		CreatedAt:      q.CreatedAt,
		LastSentAt:     q.CreatedAt,
		ExpiryInterval: q.ExpiryInterval,
		ExpirySet:      q.ExpirySet,
	}
}

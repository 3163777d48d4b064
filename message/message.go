// Package message holds the broker-internal publish representation used by
// the router, the per-client queued-message backlog, and the QoS inflight
// window — distinct from wire.Publish, which is the on-the-wire shape.
package message

import (
	"time"

	"github.com/axmq/corebroker/wire"
)

// Outbound is one message in flight toward a subscriber: either sitting in a
// session's inflight window, queued on an offline session's backlog, or
// about to be written to a subscriber's channel by the router.
type Outbound struct {
	Topic          string
	Payload        []byte
	QoS            wire.QoS
	Retain         bool
	DUP            bool
	Properties     wire.Properties
	SubscriptionID uint32
	HasSubID       bool

	CreatedAt      time.Time
	LastSentAt     time.Time
	AttemptCount   int
	ExpiryInterval uint32
	ExpirySet      bool
}

// New builds an Outbound message with CreatedAt set to now.
func New(topic string, payload []byte, qos wire.QoS, retain bool, props wire.Properties) *Outbound {
	now := time.Now()
	return &Outbound{
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		Properties: props,
		CreatedAt:  now,
		LastSentAt: now,
	}
}

// IsExpired reports whether the message's publication expiry interval has
// elapsed (spec §3 QueuedMessages / Message-Expiry-Interval property).
func (m *Outbound) IsExpired(now time.Time) bool {
	if !m.ExpirySet || m.ExpiryInterval == 0 {
		return false
	}
	return now.Sub(m.CreatedAt) >= time.Duration(m.ExpiryInterval)*time.Second
}

// MarkResend records a retransmission attempt, setting DUP from the second
// attempt onward.
func (m *Outbound) MarkResend(now time.Time) {
	m.AttemptCount++
	m.LastSentAt = now
	if m.AttemptCount > 1 {
		m.DUP = true
	}
}

// Clone returns a deep copy, used when the same publish fans out to several
// subscribers with per-subscriber DUP/subscription-id state.
func (m *Outbound) Clone() *Outbound {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	props := wire.Properties{List: append([]wire.Property(nil), m.Properties.List...)}
	out := *m
	out.Payload = payload
	out.Properties = props
	return &out
}

// Retained is a message held by the RetainedTrie for late subscribers
// (spec §3).
type Retained struct {
	Topic      string
	QoS        wire.QoS
	Payload    []byte
	Properties wire.Properties
	ExpiryAt   *time.Time
}

// Expired reports whether this retained message has passed its expiry.
func (r *Retained) Expired(now time.Time) bool {
	return r.ExpiryAt != nil && !now.Before(*r.ExpiryAt)
}

package store

import (
	"time"

	"github.com/axmq/corebroker/wire"
)

// SubscriptionRecord is one persisted subscription entry belonging to a
// Record, surviving a clean_start=false reconnect (spec §3 Session /
// persistent_sessions.subscriptions).
type SubscriptionRecord struct {
	Filter            string
	ShareGroup        string
	QoS               byte
	NoLocal           bool
	RetainAsPublished bool
	SubscriptionID    uint32
	HasSubID          bool
}

// WillRecord is a CONNECT-carried last-testament publish persisted alongside
// its owning session (spec §3 Will).
type WillRecord struct {
	Topic          string
	Payload        []byte
	QoS            wire.QoS
	Retain         bool
	DelayInterval  uint32
	ExpiryInterval uint32
	ExpirySet      bool
	Properties     wire.Properties
}

// Record is the durable half of a broker session: everything a reconnecting
// clean_start=false client needs restored before its queued backlog is
// replayed (spec §3 Session, §4.6 persistent_sessions). The volatile half —
// inflight window, packet-id allocator, live Conn — never leaves the
// session package and is never persisted.
type Record struct {
	ClientID        string
	ProtocolVersion wire.ProtocolVersion
	ExpiryInterval  uint32
	Subscriptions   []SubscriptionRecord
	Will            *WillRecord
	CreatedAt       time.Time
	LastDisconnect  time.Time
}

// Expired reports whether the record's session-expiry-interval has elapsed
// since the client last disconnected (spec §4.6 sweeper: "sessions whose
// expiry has elapsed are dropped").
func (r *Record) Expired(now time.Time) bool {
	if r.ExpiryInterval == 0 {
		return true
	}
	if r.ExpiryInterval == 0xFFFFFFFF {
		return false
	}
	return now.Sub(r.LastDisconnect) >= time.Duration(r.ExpiryInterval)*time.Second
}

// QueuedMessage is one backlog entry held for an offline persistent session,
// wrapping the in-memory message.Outbound shape with the extra bookkeeping a
// durable backend needs (spec §3 QueuedMessages, §4.6 queued_messages).
type QueuedMessage struct {
	Seq            uint64
	Topic          string
	Payload        []byte
	QoS            wire.QoS
	Retain         bool
	Properties     wire.Properties
	SubscriptionID uint32
	HasSubID       bool
	CreatedAt      time.Time
	ExpiryInterval uint32
	ExpirySet      bool
}

// Expired reports whether the queued message's publication-expiry-interval
// has elapsed while it waited in the backlog (spec §3 Message-Expiry-Interval).
func (q *QueuedMessage) Expired(now time.Time) bool {
	if !q.ExpirySet || q.ExpiryInterval == 0 {
		return false
	}
	return now.Sub(q.CreatedAt) >= time.Duration(q.ExpiryInterval)*time.Second
}

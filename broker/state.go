package broker

import (
	"context"
	"time"

	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/session"
	"github.com/axmq/corebroker/wire"
)

// clientState is the broker's bookkeeping for one known client-id, spanning
// both its connected and disconnected-but-persistent lifetimes (spec §3
// Session). It lives in exactly one of persistent_sessions / clean_sessions
// at a time.
type clientState struct {
	clientID        string
	connected       bool
	out             chan *message.Outbound
	cmds            chan<- any // the live session's Commands(), for forced takeover disconnect
	protocolVersion wire.ProtocolVersion
	expiryInterval  uint32
	subscriptions   []session.SubscriptionRequest
	will            *session.Will
	disconnectedAt  time.Time
	cancelWill      context.CancelFunc
}

// upsertSubscription replaces an existing (filter, share-group) entry or
// appends a new one, mirroring topic.Entry identity semantics.
func upsertSubscription(subs []session.SubscriptionRequest, req session.SubscriptionRequest) []session.SubscriptionRequest {
	for i, s := range subs {
		if s.Filter == req.Filter && s.ShareGroup == req.ShareGroup {
			subs[i] = req
			return subs
		}
	}
	return append(subs, req)
}

// removeSubscription drops the (filter, share-group) entry, if present.
func removeSubscription(subs []session.SubscriptionRequest, filter, shareGroup string) []session.SubscriptionRequest {
	for i, s := range subs {
		if s.Filter == filter && s.ShareGroup == shareGroup {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

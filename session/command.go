package session

import (
	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/wire"
)

// BrokerPort is the command channel a Session forwards CONNECT, SUBSCRIBE,
// UNSUBSCRIBE and disconnect notifications to (spec §4.5: "forward to
// broker"). The broker (C6) is the single consumer.
type BrokerPort interface {
	Commands() chan<- any
}

// RouterPort is the command channel a Session forwards PUBLISH directly to
// (spec §4.5: "forward to router" — PUBLISH bypasses the broker entirely).
type RouterPort interface {
	Commands() chan<- any
}

// ConnectCmd asks the broker to accept or reject a CONNECT, carrying the new
// session's outbound channel so the broker can wire inherited subscriptions
// and drain queued messages directly into it (spec §4.6 Connect handling).
type ConnectCmd struct {
	ClientID        string
	AssignClientID  bool
	CleanStart      bool
	ExpiryInterval  uint32
	KeepAlive       uint16
	ReceiveMaximum  uint16
	ProtocolVersion wire.ProtocolVersion
	Will            *Will
	Out             chan *message.Outbound
	Cmds            chan<- any // this session's Commands() channel, so the broker can force a takeover disconnect later
	ReplyTo         chan ConnectReply
}

// ConnectReply is the broker's answer to a ConnectCmd.
type ConnectReply struct {
	Accepted             bool
	ReasonCode           wire.ReturnCode
	SessionPresent       bool
	AssignedClientID     string
	GrantedExpiry        uint32
	GrantedKeepAlive     uint16
	GrantedReceiveMax    uint16
	GrantedMaxPacketSize uint32
}

// SubscriptionRequest is one (filter, options) pair from a SUBSCRIBE packet.
type SubscriptionRequest struct {
	Filter            string
	ShareGroup        string
	QoS               byte
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    byte
	SubscriptionID    uint32
	HasSubID          bool
}

// SubscribeCmd forwards a SUBSCRIBE packet's filters to the broker.
type SubscribeCmd struct {
	ClientID string
	Filters  []SubscriptionRequest
	Out      chan *message.Outbound
	ReplyTo  chan SubscribeReply
}

// SubscribeReply carries one reason code per requested filter, in order.
type SubscribeReply struct {
	ReasonCodes []wire.ReturnCode
}

// UnsubscribeCmd forwards an UNSUBSCRIBE packet's filters to the broker.
type UnsubscribeCmd struct {
	ClientID string
	Filters  []string
	ReplyTo  chan UnsubscribeReply
}

// UnsubscribeReply carries one reason code per requested filter, in order.
type UnsubscribeReply struct {
	ReasonCodes []wire.ReturnCode
}

// DisconnectedCmd notifies the broker that a session's transport has gone
// away, with its reason code and Will, if any (spec §4.6 Disconnected).
type DisconnectedCmd struct {
	ClientID string
	Code     wire.ReturnCode
	Will     *Will
}

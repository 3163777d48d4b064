// Package hook provides the broker's extension point: a registry of
// callbacks invoked from session, broker and router at the same lifecycle
// boundaries the teacher's hook system names, but carrying this module's
// own domain types (session, message, wire) instead of a standalone packet
// mirror.
package hook

import (
	"time"

	"github.com/axmq/corebroker/wire"
)

// Event identifies one hook callback point.
type Event byte

const (
	SetOptions Event = iota
	OnStarted
	OnStopped
	OnConnectAuthenticate
	OnACLCheck
	OnConnect
	OnDisconnect
	OnSubscribe
	OnSubscribed
	OnUnsubscribe
	OnUnsubscribed
	OnPublish
	OnPublished
	OnPublishDropped
	OnWill
	OnWillSent
	OnClientExpired
	OnRetainedExpired
	OnPanic
)

func (e Event) String() string {
	names := [...]string{
		"SetOptions", "OnStarted", "OnStopped", "OnConnectAuthenticate",
		"OnACLCheck", "OnConnect", "OnDisconnect", "OnSubscribe",
		"OnSubscribed", "OnUnsubscribe", "OnUnsubscribed", "OnPublish",
		"OnPublished", "OnPublishDropped", "OnWill", "OnWillSent",
		"OnClientExpired", "OnRetainedExpired", "OnPanic",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Unknown"
}

// Hook is the interface every extension implements. Provides lets the
// manager skip calling into hooks that don't care about a given event,
// exactly as the teacher's dispatch loop does.
type Hook interface {
	ID() string
	Provides(event Event) bool
	Init(config any) error
	Stop() error

	SetOptions(opts *Options) error
	OnStarted() error
	OnStopped(err error) error

	OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool
	OnACLCheck(client *Client, topic string, access AccessType) bool
	OnConnect(client *Client, packet *ConnectPacket) error
	OnDisconnect(client *Client, err error, expire bool) error

	OnSubscribe(client *Client, sub *Subscription) error
	OnSubscribed(client *Client, sub *Subscription) error
	OnUnsubscribe(client *Client, topicFilter string) error
	OnUnsubscribed(client *Client, topicFilter string) error

	OnPublish(client *Client, packet *PublishPacket) error
	OnPublished(client *Client, packet *PublishPacket) error
	OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) error

	OnWill(client *Client, will *WillMessage) *WillMessage
	OnWillSent(client *Client, will *WillMessage) error
	OnClientExpired(clientID string) error
	OnRetainedExpired(topic string) error

	// OnPanic reports a recovered panic from a session, router or broker
	// task; origin names the owning goroutine ("session", "router",
	// "broker") for correlation.
	OnPanic(origin string, clientID string, recovered any) error
}

// Options mirrors the broker capabilities a hook may need at SetOptions
// time (spec §6 mqtt.settings).
type Options struct {
	MaxSessionExpiryInterval uint32
	MaxReceiveQueue          uint16
	MaxQoS                   byte
	RetainAvailable          bool
	MaxPacketSize            uint32
	WildcardSubAvailable     bool
	SharedSubAvailable       bool
}

// Client is the subset of per-connection identity a hook may need: no
// channels, no net.Conn, so hooks can't reach into session/broker internals.
type Client struct {
	ID              string
	RemoteAddr      string
	Username        string
	ProtocolVersion wire.ProtocolVersion
	ConnectedAt     time.Time
}

// ConnectPacket carries the fields of a CONNECT relevant to authentication
// and auditing hooks.
type ConnectPacket struct {
	ClientID   string
	Username   string
	Password   []byte
	CleanStart bool
	KeepAlive  uint16
	Will       *WillMessage
}

// PublishPacket carries the fields of a PUBLISH relevant to ACL, rate
// limiting and auditing hooks.
type PublishPacket struct {
	Topic      string
	Payload    []byte
	QoS        wire.QoS
	Retain     bool
	Properties wire.Properties
}

// Subscription carries the fields of one SUBSCRIBE filter.
type Subscription struct {
	ClientID   string
	Filter     string
	ShareGroup string
	QoS        byte
}

// WillMessage mirrors session.Will for hooks, which must not import session
// (session already forwards through broker; hook stays a leaf package).
type WillMessage struct {
	Topic         string
	Payload       []byte
	QoS           wire.QoS
	Retain        bool
	DelayInterval uint32
}

// AccessType is the kind of access an OnACLCheck call is gating.
type AccessType byte

const (
	AccessRead AccessType = iota
	AccessWrite
)

// DropReason is why OnPublishDropped fired.
type DropReason byte

const (
	DropReasonQueueFull DropReason = iota
	DropReasonExpired
	DropReasonACLDenied
	DropReasonPacketTooLarge
)

func (d DropReason) String() string {
	switch d {
	case DropReasonQueueFull:
		return "queue_full"
	case DropReasonExpired:
		return "expired"
	case DropReasonACLDenied:
		return "acl_denied"
	case DropReasonPacketTooLarge:
		return "packet_too_large"
	default:
		return "unknown"
	}
}

package session

import "github.com/axmq/corebroker/wire"

// Will holds the CONNECT-carried last-testament publish, generalizing the
// teacher's WillMessage with v5's delay/expiry properties (spec §3 Will).
type Will struct {
	Topic          string
	Payload        []byte
	QoS            wire.QoS
	Retain         bool
	DelayInterval  uint32
	ExpiryInterval uint32
	ExpirySet      bool
	Properties     wire.Properties
}

package broker

import "time"

// Config bounds the broker's session-registry behavior (spec §4.6, §6).
type Config struct {
	MaxTopicLength        int
	MaxStoreMsgsPerClient int
	SweepInterval         time.Duration
	MaxSessionExpiry      uint32 // 0xFFFFFFFF disables the cap (spec GLOSSARY: session never expires)
	MaxReceiveQueue       uint16 // caps a client's requested Receive-Maximum, downward only (spec §9)
	MaxPacketSize         uint32 // granted to the client as CONNACK Maximum Packet Size (spec §4.1, §4.5)
}

// DefaultConfig returns the broker's out-of-the-box limits, overridden by
// the config package's YAML-loaded mqtt.settings tree in production.
func DefaultConfig() Config {
	return Config{
		MaxTopicLength:        65535,
		MaxStoreMsgsPerClient: 1000,
		SweepInterval:         60 * time.Second,
		MaxSessionExpiry:      0xFFFFFFFF,
		MaxReceiveQueue:       128,
		MaxPacketSize:         1 << 20,
	}
}

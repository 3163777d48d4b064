package qos

import "errors"

var (
	ErrInvalidQoS       = errors.New("invalid QoS level")
	ErrPacketIDNotFound = errors.New("packet ID not found")
	ErrInflightFull     = errors.New("inflight window full")
)

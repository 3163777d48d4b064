package broker

import (
	"github.com/axmq/corebroker/wire"
)

// validateFilter checks length against the broker's configured bound, then
// delegates wildcard/shared-subscription shape checks to wire (spec §4.6
// "validate filter (non-empty, length ≤ max_topic_length, wildcard
// placement rules, optional shared-subscription prefix well-formed)").
func validateFilter(filter string, maxLen int) error {
	if maxLen > 0 && len(filter) > maxLen {
		return wire.ErrInvalidTopicFilter
	}
	return wire.ValidateTopicFilter(filter)
}

// grantedCode maps a granted QoS level to the reason code a SUBACK reports.
func grantedCode(qos byte) wire.ReturnCode {
	switch qos {
	case 1:
		return wire.RCGrantedQoS1
	case 2:
		return wire.RCGrantedQoS2
	default:
		return wire.RCSuccess
	}
}

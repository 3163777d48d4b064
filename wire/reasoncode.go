package wire

// ReturnCode is the reason-code space shared by v3 CONNACK return codes
// (0..5) and v5 reason codes (0..159, sparse) per spec §3. The same byte
// value means different things in different packet types for v3 (e.g. "1"
// is UnsupportedProtocolVersion in a CONNACK, but has no meaning in a
// SUBACK); callers interpret ReturnCode against the packet type they hold.
type ReturnCode byte

// Severity classifies a ReturnCode for logging/metrics purposes.
type Severity byte

const (
	SeveritySuccess Severity = iota
	SeverityClientError
	SeverityServerError
	SeverityDisconnectReason
)

const (
	RCSuccess                   ReturnCode = 0x00
	RCGrantedQoS1               ReturnCode = 0x01
	RCGrantedQoS2               ReturnCode = 0x02
	RCDisconnectWithWill        ReturnCode = 0x04
	RCNoMatchingSubscribers     ReturnCode = 0x10
	RCNoSubscriptionExisted     ReturnCode = 0x11
	RCContinueAuthentication    ReturnCode = 0x18
	RCReAuthenticate            ReturnCode = 0x19

	RCUnspecifiedError                    ReturnCode = 0x80
	RCMalformedPacket                     ReturnCode = 0x81
	RCProtocolError                       ReturnCode = 0x82
	RCImplementationSpecificError         ReturnCode = 0x83
	RCUnsupportedProtocolVersion          ReturnCode = 0x84
	RCClientIdentifierNotValid            ReturnCode = 0x85
	RCBadUsernameOrPassword               ReturnCode = 0x86
	RCNotAuthorized                       ReturnCode = 0x87
	RCServerUnavailable                   ReturnCode = 0x88
	RCServerBusy                          ReturnCode = 0x89
	RCBanned                              ReturnCode = 0x8A
	RCServerShuttingDown                  ReturnCode = 0x8B
	RCBadAuthenticationMethod             ReturnCode = 0x8C
	RCKeepAliveTimeout                    ReturnCode = 0x8D
	RCSessionTakenOver                    ReturnCode = 0x8E
	RCTopicFilterInvalid                  ReturnCode = 0x8F
	RCTopicNameInvalid                    ReturnCode = 0x90
	RCPacketIdentifierInUse               ReturnCode = 0x91
	RCPacketIdentifierNotFound             ReturnCode = 0x92
	RCReceiveMaximumExceeded              ReturnCode = 0x93
	RCTopicAliasInvalid                   ReturnCode = 0x94
	RCPacketTooLarge                      ReturnCode = 0x95
	RCMessageRateTooHigh                  ReturnCode = 0x96
	RCQuotaExceeded                       ReturnCode = 0x97
	RCAdministrativeAction                ReturnCode = 0x98
	RCPayloadFormatInvalid                ReturnCode = 0x99
	RCRetainNotSupported                  ReturnCode = 0x9A
	RCQoSNotSupported                     ReturnCode = 0x9B
	RCUseAnotherServer                    ReturnCode = 0x9C
	RCServerMoved                         ReturnCode = 0x9D
	RCSharedSubscriptionsNotSupported     ReturnCode = 0x9E
	RCConnectionRateExceeded              ReturnCode = 0x9F
	RCMaximumConnectTime                  ReturnCode = 0xA0
	RCSubscriptionIdsNotSupported         ReturnCode = 0xA1
	RCWildcardSubscriptionsNotSupported   ReturnCode = 0xA2

	// v3 CONNACK-only return codes (0..5); values 1-5 overlap byte-for-byte
	// with unrelated v5 reason codes and are only ever read through
	// ConnAckReturnCodeV3.
	RCV3UnacceptableProtocolVersion ReturnCode = 0x01
	RCV3IdentifierRejected          ReturnCode = 0x02
	RCV3ServerUnavailable           ReturnCode = 0x03
	RCV3BadUsernameOrPassword       ReturnCode = 0x04
	RCV3NotAuthorized               ReturnCode = 0x05
)

type reasonInfo struct {
	label    string
	severity Severity
}

var reasonTable = map[ReturnCode]reasonInfo{
	RCSuccess:                             {"Success", SeveritySuccess},
	RCGrantedQoS1:                         {"GrantedQoS1", SeveritySuccess},
	RCGrantedQoS2:                         {"GrantedQoS2", SeveritySuccess},
	RCDisconnectWithWill:                  {"DisconnectWithWillMessage", SeverityDisconnectReason},
	RCNoMatchingSubscribers:               {"NoMatchingSubscribers", SeveritySuccess},
	RCNoSubscriptionExisted:               {"NoSubscriptionExisted", SeveritySuccess},
	RCContinueAuthentication:              {"ContinueAuthentication", SeveritySuccess},
	RCReAuthenticate:                      {"ReAuthenticate", SeveritySuccess},
	RCUnspecifiedError:                    {"UnspecifiedError", SeverityServerError},
	RCMalformedPacket:                     {"MalformedPacket", SeverityClientError},
	RCProtocolError:                       {"ProtocolError", SeverityClientError},
	RCImplementationSpecificError:         {"ImplementationSpecificError", SeverityServerError},
	RCUnsupportedProtocolVersion:          {"UnsupportedProtocolVersion", SeverityClientError},
	RCClientIdentifierNotValid:            {"ClientIdentifierNotValid", SeverityClientError},
	RCBadUsernameOrPassword:               {"BadUsernameOrPassword", SeverityClientError},
	RCNotAuthorized:                       {"NotAuthorized", SeverityClientError},
	RCServerUnavailable:                   {"ServerUnavailable", SeverityServerError},
	RCServerBusy:                          {"ServerBusy", SeverityServerError},
	RCBanned:                              {"Banned", SeverityClientError},
	RCServerShuttingDown:                  {"ServerShuttingDown", SeverityDisconnectReason},
	RCBadAuthenticationMethod:             {"BadAuthenticationMethod", SeverityClientError},
	RCKeepAliveTimeout:                    {"KeepAliveTimeout", SeverityDisconnectReason},
	RCSessionTakenOver:                    {"SessionTakenOver", SeverityDisconnectReason},
	RCTopicFilterInvalid:                  {"TopicFilterInvalid", SeverityClientError},
	RCTopicNameInvalid:                    {"TopicNameInvalid", SeverityClientError},
	RCPacketIdentifierInUse:               {"PacketIdentifierInUse", SeverityClientError},
	RCPacketIdentifierNotFound:            {"PacketIdentifierNotFound", SeverityClientError},
	RCReceiveMaximumExceeded:              {"ReceiveMaximumExceeded", SeverityClientError},
	RCTopicAliasInvalid:                   {"TopicAliasInvalid", SeverityClientError},
	RCPacketTooLarge:                      {"PacketTooLarge", SeverityClientError},
	RCMessageRateTooHigh:                  {"MessageRateTooHigh", SeverityClientError},
	RCQuotaExceeded:                       {"QuotaExceeded", SeverityClientError},
	RCAdministrativeAction:                {"AdministrativeAction", SeverityDisconnectReason},
	RCPayloadFormatInvalid:                {"PayloadFormatInvalid", SeverityClientError},
	RCRetainNotSupported:                  {"RetainNotSupported", SeverityClientError},
	RCQoSNotSupported:                     {"QoSNotSupported", SeverityClientError},
	RCUseAnotherServer:                    {"UseAnotherServer", SeverityServerError},
	RCServerMoved:                         {"ServerMoved", SeverityServerError},
	RCSharedSubscriptionsNotSupported:     {"SharedSubscriptionsNotSupported", SeverityClientError},
	RCConnectionRateExceeded:              {"ConnectionRateExceeded", SeverityServerError},
	RCMaximumConnectTime:                  {"MaximumConnectTime", SeverityDisconnectReason},
	RCSubscriptionIdsNotSupported:         {"SubscriptionIdentifiersNotSupported", SeverityClientError},
	RCWildcardSubscriptionsNotSupported:   {"WildcardSubscriptionsNotSupported", SeverityClientError},
}

// Label returns the reason code's short name, or "Unknown" if unrecognized.
func (rc ReturnCode) Label() string {
	if info, ok := reasonTable[rc]; ok {
		return info.label
	}
	return "Unknown"
}

// Severity classifies the reason code.
func (rc ReturnCode) Severity() Severity {
	if info, ok := reasonTable[rc]; ok {
		return info.severity
	}
	return SeverityServerError
}

// IsSuccess reports whether rc represents a successful outcome: any code
// below 0x80.
func (rc ReturnCode) IsSuccess() bool {
	return rc < 0x80
}

// connAckReturnCodeV3 converts a v5-style ReturnCode (as produced by the
// broker's internal accept/reject decision) to the byte a v3/v3.1.1 CONNACK
// must send, which has its own 0..5 enumeration.
func connAckReturnCodeV3(rc ReturnCode) byte {
	switch rc {
	case RCSuccess:
		return 0x00
	case RCUnsupportedProtocolVersion:
		return byte(RCV3UnacceptableProtocolVersion)
	case RCClientIdentifierNotValid:
		return byte(RCV3IdentifierRejected)
	case RCServerUnavailable:
		return byte(RCV3ServerUnavailable)
	case RCBadUsernameOrPassword:
		return byte(RCV3BadUsernameOrPassword)
	case RCNotAuthorized, RCBanned:
		return byte(RCV3NotAuthorized)
	default:
		return byte(RCV3ServerUnavailable)
	}
}

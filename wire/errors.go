package wire

import "errors"

// Decode errors. Any of these is fatal for the connection that produced it.
var (
	ErrNeedMoreData          = errors.New("wire: need more data")
	ErrVariableByteIntOver   = errors.New("wire: variable byte integer exceeds maximum (268,435,455)")
	ErrMalformedVarInt       = errors.New("wire: malformed variable byte integer")
	ErrInvalidFixedHeader    = errors.New("wire: invalid fixed header")
	ErrInvalidMessageType    = errors.New("wire: invalid message type")
	ErrInvalidQoS            = errors.New("wire: invalid QoS level")
	ErrInvalidFlags          = errors.New("wire: invalid flags for packet type")
	ErrInvalidProtocolName   = errors.New("wire: invalid protocol name")
	ErrInvalidProtocolVer    = errors.New("wire: invalid protocol version")
	ErrMalformedPayload      = errors.New("wire: malformed payload")
	ErrInvalidProperty       = errors.New("wire: invalid property")
	ErrInvalidTopicFilter    = errors.New("wire: invalid topic filter")
	ErrInvalidTopicName      = errors.New("wire: invalid topic name")
	ErrInvalidReturnCode     = errors.New("wire: invalid return code")
	ErrInvalidUTF8           = errors.New("wire: invalid UTF-8 string")
	ErrNullCharacter         = errors.New("wire: null character in UTF-8 string")
	ErrSurrogateCodePoint    = errors.New("wire: UTF-16 surrogate in UTF-8 string")
	ErrBufferTooSmall        = errors.New("wire: buffer too small")
	ErrDuplicateProperty     = errors.New("wire: duplicate non-repeatable property")
)

// ReasonCodeForErr maps a decode error to the v5 reason code the session
// must close the connection with. V3/v3.1.1 connections are closed without
// sending this byte (see spec §7).
func ReasonCodeForErr(err error) ReturnCode {
	switch {
	case errors.Is(err, ErrInvalidTopicFilter):
		return RCTopicFilterInvalid
	case errors.Is(err, ErrInvalidTopicName):
		return RCTopicNameInvalid
	case errors.Is(err, ErrInvalidProtocolVer):
		return RCUnsupportedProtocolVersion
	case errors.Is(err, ErrInvalidFixedHeader),
		errors.Is(err, ErrInvalidMessageType),
		errors.Is(err, ErrInvalidQoS),
		errors.Is(err, ErrInvalidFlags),
		errors.Is(err, ErrMalformedPayload),
		errors.Is(err, ErrInvalidProperty),
		errors.Is(err, ErrMalformedVarInt),
		errors.Is(err, ErrInvalidUTF8),
		errors.Is(err, ErrNullCharacter),
		errors.Is(err, ErrSurrogateCodePoint):
		return RCMalformedPacket
	default:
		return RCUnspecifiedError
	}
}

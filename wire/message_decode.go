package wire

import (
	"io"
	"strings"

	"github.com/google/uuid"
)

func decodeConnect(r io.Reader) (Message, error) {
	name, err := readUTF8(r)
	if err != nil {
		return nil, err
	}
	if name != "MQTT" && name != "MQIsdp" {
		return nil, ErrInvalidProtocolName
	}

	verByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	version := ProtocolVersion(verByte)
	if !version.Valid() {
		return nil, ErrInvalidProtocolVer
	}

	flags, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if flags&0x01 != 0 {
		return nil, ErrMalformedPayload
	}

	c := &Connect{Version: version}
	c.CleanStart = flags&0x02 != 0
	willFlag := flags&0x04 != 0
	willQoS := QoS((flags & 0x18) >> 3)
	willRetain := flags&0x20 != 0
	c.PasswordFlag = flags&0x40 != 0
	c.UsernameFlag = flags&0x80 != 0

	if willFlag && !willQoS.Valid() {
		return nil, ErrInvalidQoS
	}
	if !willFlag && (willQoS != 0 || willRetain) {
		return nil, ErrMalformedPayload
	}

	keepAlive, err := readU16(r)
	if err != nil {
		return nil, err
	}
	c.KeepAlive = keepAlive

	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		c.Properties = props
	}

	clientID, err := readUTF8(r)
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		c.ClientID = generateClientID()
		c.GenClientID = true
		c.CleanStart = true
	} else {
		c.ClientID = clientID
	}

	if willFlag {
		will := &Will{QoS: willQoS, Retain: willRetain}
		if version == V5 {
			wprops, err := ParseProperties(r)
			if err != nil {
				return nil, err
			}
			will.Properties = wprops
			if p := wprops.Get(PropWillDelayInterval); p != nil {
				will.DelayInterval = p.Value.(uint32)
			}
			if p := wprops.Get(PropMessageExpiryInterval); p != nil {
				will.ExpiryInterval = p.Value.(uint32)
				will.ExpirySet = true
			}
		}
		topic, err := readUTF8(r)
		if err != nil {
			return nil, err
		}
		if err := validateTopicName(topic); err != nil {
			return nil, err
		}
		will.Topic = topic
		payload, err := readBinary(r)
		if err != nil {
			return nil, err
		}
		will.Payload = payload
		c.Will = will
	}

	if c.UsernameFlag {
		username, err := readUTF8(r)
		if err != nil {
			return nil, err
		}
		c.Username = username
	}
	if c.PasswordFlag {
		password, err := readBinary(r)
		if err != nil {
			return nil, err
		}
		c.Password = password
	}

	return c, nil
}

// generateClientID synthesizes a server-assigned client identifier for a
// CONNECT with an empty client-id field (spec §4.1).
func generateClientID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(raw) > 14 {
		raw = raw[:14]
	}
	return "inner_" + raw
}

func decodeConnAck(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	ca := &ConnAck{Version: version}
	flags, err := readByte(r)
	if err != nil {
		return nil, err
	}
	ca.SessionPresent = flags&0x01 != 0

	rc, err := readByte(r)
	if err != nil {
		return nil, err
	}
	ca.ReasonCode = ReturnCode(rc)

	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		ca.Properties = props
	}
	return ca, nil
}

func decodePublish(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	topic, err := readUTF8(r)
	if err != nil {
		return nil, err
	}
	if err := validateTopicName(topic); err != nil {
		return nil, err
	}

	p := &Publish{Version: version, TopicName: topic, DUP: fh.DUP, QoS: fh.QoS, Retain: fh.Retain}

	if fh.QoS > QoS0 {
		pid, err := readU16(r)
		if err != nil {
			return nil, err
		}
		if pid == 0 {
			return nil, ErrMalformedPayload
		}
		p.PacketID = pid
	}

	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		p.Properties = props
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.Payload = payload
	return p, nil
}

// parseAckBody parses the shared PUBACK/PUBREC/PUBREL/PUBCOMP body. v3 acks
// are always 2 bytes (packet id only). v5 acks may omit the reason code and
// property block entirely when the reason is Success (spec §4.1); the
// decoder tolerates both the 2-byte and the full form via RemainingLength.
func parseAckBody(r io.Reader, fh *FixedHeader, version ProtocolVersion) (ackPacket, error) {
	a := ackPacket{Version: version}
	pid, err := readU16(r)
	if err != nil {
		return a, err
	}
	a.PacketID = pid

	if version != V5 || fh.RemainingLength == 2 {
		a.ReasonCode = RCSuccess
		return a, nil
	}

	rc, err := readByte(r)
	if err != nil {
		return a, err
	}
	a.ReasonCode = ReturnCode(rc)

	if fh.RemainingLength == 3 {
		return a, nil
	}

	props, err := ParseProperties(r)
	if err != nil {
		return a, err
	}
	a.Properties = props
	return a, nil
}

func decodeSubscribe(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	s := &Subscribe{Version: version}
	pid, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if pid == 0 {
		return nil, ErrMalformedPayload
	}
	s.PacketID = pid

	consumed := 2
	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		s.Properties = props
		if p := props.Get(PropSubscriptionIdentifier); p != nil {
			s.SubscriptionID = p.Value.(uint32)
			s.HasSubscriptionID = true
		}
		consumed += int(props.EncodedLen()) + SizeVarInt(props.EncodedLen())
	}

	for consumed < int(fh.RemainingLength) {
		filter, err := readUTF8(r)
		if err != nil {
			return nil, err
		}
		if err := ValidateTopicFilter(filter); err != nil {
			return nil, err
		}
		consumed += 2 + len(filter)

		opts, err := readByte(r)
		if err != nil {
			return nil, err
		}
		consumed++

		if opts&0xC0 != 0 {
			return nil, ErrMalformedPayload
		}
		retainHandling := (opts & 0x30) >> 4
		if retainHandling > 2 {
			return nil, ErrMalformedPayload
		}
		qos := QoS(opts & 0x03)
		if !qos.Valid() {
			return nil, ErrInvalidQoS
		}

		s.Subscriptions = append(s.Subscriptions, SubscribeOption{
			TopicFilter:       filter,
			QoS:               qos,
			NoLocal:           opts&0x04 != 0,
			RetainAsPublished: opts&0x08 != 0,
			RetainHandling:    retainHandling,
		})
	}

	if len(s.Subscriptions) == 0 {
		return nil, ErrMalformedPayload
	}
	return s, nil
}

func decodeSubAck(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	sa := &SubAck{Version: version}
	pid, err := readU16(r)
	if err != nil {
		return nil, err
	}
	sa.PacketID = pid

	consumed := 2
	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		sa.Properties = props
		consumed += int(props.EncodedLen()) + SizeVarInt(props.EncodedLen())
	}

	for consumed < int(fh.RemainingLength) {
		rc, err := readByte(r)
		if err != nil {
			return nil, err
		}
		sa.ReasonCodes = append(sa.ReasonCodes, ReturnCode(rc))
		consumed++
	}
	return sa, nil
}

func decodeUnsubscribe(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	u := &Unsubscribe{Version: version}
	pid, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if pid == 0 {
		return nil, ErrMalformedPayload
	}
	u.PacketID = pid

	consumed := 2
	if version == V5 {
		props, err := ParseProperties(r)
		if err != nil {
			return nil, err
		}
		u.Properties = props
		consumed += int(props.EncodedLen()) + SizeVarInt(props.EncodedLen())
	}

	for consumed < int(fh.RemainingLength) {
		filter, err := readUTF8(r)
		if err != nil {
			return nil, err
		}
		if err := ValidateTopicFilter(filter); err != nil {
			return nil, err
		}
		u.TopicFilters = append(u.TopicFilters, filter)
		consumed += 2 + len(filter)
	}
	if len(u.TopicFilters) == 0 {
		return nil, ErrMalformedPayload
	}
	return u, nil
}

func decodeUnsubAck(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	ua := &UnsubAck{Version: version}
	pid, err := readU16(r)
	if err != nil {
		return nil, err
	}
	ua.PacketID = pid

	if version != V5 {
		return ua, nil
	}

	consumed := 2
	props, err := ParseProperties(r)
	if err != nil {
		return nil, err
	}
	ua.Properties = props
	consumed += int(props.EncodedLen()) + SizeVarInt(props.EncodedLen())

	for consumed < int(fh.RemainingLength) {
		rc, err := readByte(r)
		if err != nil {
			return nil, err
		}
		ua.ReasonCodes = append(ua.ReasonCodes, ReturnCode(rc))
		consumed++
	}
	return ua, nil
}

func decodeDisconnect(r io.Reader, fh *FixedHeader, version ProtocolVersion) (Message, error) {
	d := &Disconnect{Version: version, ReasonCode: RCSuccess}
	if version != V5 || fh.RemainingLength == 0 {
		return d, nil
	}
	rc, err := readByte(r)
	if err != nil {
		return nil, err
	}
	d.ReasonCode = ReturnCode(rc)
	if fh.RemainingLength == 1 {
		return d, nil
	}
	props, err := ParseProperties(r)
	if err != nil {
		return nil, err
	}
	d.Properties = props
	return d, nil
}

func decodeAuth(r io.Reader, fh *FixedHeader) (Message, error) {
	a := &Auth{ReasonCode: RCSuccess}
	if fh.RemainingLength == 0 {
		return a, nil
	}
	rc, err := readByte(r)
	if err != nil {
		return nil, err
	}
	a.ReasonCode = ReturnCode(rc)
	if fh.RemainingLength == 1 {
		return a, nil
	}
	props, err := ParseProperties(r)
	if err != nil {
		return nil, err
	}
	a.Properties = props
	return a, nil
}

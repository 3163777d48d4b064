package wire

import (
	"bytes"
	"io"
)

func writeFixedHeader(w io.Writer, t PacketType, flags byte, remainingLength uint32) error {
	if _, err := w.Write([]byte{byte(t)<<4 | flags}); err != nil {
		return err
	}
	lenBytes, err := EncodeVarInt(remainingLength)
	if err != nil {
		return err
	}
	_, err = w.Write(lenBytes)
	return err
}

func flush(w io.Writer, t PacketType, flags byte, body *bytes.Buffer) error {
	if err := writeFixedHeader(w, t, flags, uint32(body.Len())); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Encode writes the full wire representation of c (used only for test
// round-trips and bridging tools; the broker itself never originates a
// CONNECT).
func (c *Connect) Encode(w io.Writer) error {
	var body bytes.Buffer
	name := "MQTT"
	if c.Version == V3 {
		name = "MQIsdp"
	}
	if err := writeUTF8(&body, name); err != nil {
		return err
	}
	if err := writeByte(&body, byte(c.Version)); err != nil {
		return err
	}

	var flags byte
	if c.CleanStart {
		flags |= 0x02
	}
	if c.Will != nil {
		flags |= 0x04
		flags |= byte(c.Will.QoS) << 3
		if c.Will.Retain {
			flags |= 0x20
		}
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.UsernameFlag {
		flags |= 0x80
	}
	if err := writeByte(&body, flags); err != nil {
		return err
	}
	if err := writeU16(&body, c.KeepAlive); err != nil {
		return err
	}
	if c.Version == V5 {
		if err := c.Properties.Encode(&body); err != nil {
			return err
		}
	}
	if err := writeUTF8(&body, c.ClientID); err != nil {
		return err
	}
	if c.Will != nil {
		if c.Version == V5 {
			if err := c.Will.Properties.Encode(&body); err != nil {
				return err
			}
		}
		if err := writeUTF8(&body, c.Will.Topic); err != nil {
			return err
		}
		if err := writeBinary(&body, c.Will.Payload); err != nil {
			return err
		}
	}
	if c.UsernameFlag {
		if err := writeUTF8(&body, c.Username); err != nil {
			return err
		}
	}
	if c.PasswordFlag {
		if err := writeBinary(&body, c.Password); err != nil {
			return err
		}
	}
	return flush(w, CONNECT, 0, &body)
}

// Encode writes the CONNACK packet. For v5, Properties is written exactly as
// the caller set it; Encode adds no server-capability properties itself.
func (ca *ConnAck) Encode(w io.Writer) error {
	var body bytes.Buffer
	var flags byte
	if ca.SessionPresent {
		flags = 0x01
	}
	if err := writeByte(&body, flags); err != nil {
		return err
	}
	if ca.Version == V3 || ca.Version == V311 {
		if err := writeByte(&body, connAckReturnCodeV3(ca.ReasonCode)); err != nil {
			return err
		}
	} else {
		if err := writeByte(&body, byte(ca.ReasonCode)); err != nil {
			return err
		}
		if ca.Version == V5 {
			if err := ca.Properties.Encode(&body); err != nil {
				return err
			}
		}
	}
	return flush(w, CONNACK, 0, &body)
}

func (p *Publish) Encode(w io.Writer) error {
	var body bytes.Buffer
	if err := writeUTF8(&body, p.TopicName); err != nil {
		return err
	}
	if p.QoS > QoS0 {
		if err := writeU16(&body, p.PacketID); err != nil {
			return err
		}
	}
	if p.Version == V5 {
		if err := p.Properties.Encode(&body); err != nil {
			return err
		}
	}
	if _, err := body.Write(p.Payload); err != nil {
		return err
	}

	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}
	return flush(w, PUBLISH, flags, &body)
}

// encodeAck writes the shared PUBACK/PUBREC/PUBREL/PUBCOMP body. v3 encodes
// only the packet id. v5 omits the reason code and property block when the
// reason is Success and there are no properties, per spec §4.1's
// space-saving allowance.
func encodeAck(w io.Writer, t PacketType, flags byte, a ackPacket) error {
	var body bytes.Buffer
	if err := writeU16(&body, a.PacketID); err != nil {
		return err
	}
	if a.Version == V5 {
		if a.ReasonCode != RCSuccess || len(a.Properties.List) > 0 {
			if err := writeByte(&body, byte(a.ReasonCode)); err != nil {
				return err
			}
			if len(a.Properties.List) > 0 {
				if err := a.Properties.Encode(&body); err != nil {
					return err
				}
			}
		}
	}
	return flush(w, t, flags, &body)
}

func (p *PubAck) Encode(w io.Writer) error  { return encodeAck(w, PUBACK, 0, ackPacket(*p)) }
func (p *PubRec) Encode(w io.Writer) error  { return encodeAck(w, PUBREC, 0, ackPacket(*p)) }
func (p *PubRel) Encode(w io.Writer) error  { return encodeAck(w, PUBREL, 0x02, ackPacket(*p)) }
func (p *PubComp) Encode(w io.Writer) error { return encodeAck(w, PUBCOMP, 0, ackPacket(*p)) }

func (s *Subscribe) Encode(w io.Writer) error {
	var body bytes.Buffer
	if err := writeU16(&body, s.PacketID); err != nil {
		return err
	}
	if s.Version == V5 {
		if err := s.Properties.Encode(&body); err != nil {
			return err
		}
	}
	for _, sub := range s.Subscriptions {
		if err := writeUTF8(&body, sub.TopicFilter); err != nil {
			return err
		}
		opts := byte(sub.QoS)
		if sub.NoLocal {
			opts |= 0x04
		}
		if sub.RetainAsPublished {
			opts |= 0x08
		}
		opts |= sub.RetainHandling << 4
		if err := writeByte(&body, opts); err != nil {
			return err
		}
	}
	return flush(w, SUBSCRIBE, 0x02, &body)
}

func (sa *SubAck) Encode(w io.Writer) error {
	var body bytes.Buffer
	if err := writeU16(&body, sa.PacketID); err != nil {
		return err
	}
	if sa.Version == V5 {
		if err := sa.Properties.Encode(&body); err != nil {
			return err
		}
	}
	for _, rc := range sa.ReasonCodes {
		if err := writeByte(&body, byte(rc)); err != nil {
			return err
		}
	}
	return flush(w, SUBACK, 0, &body)
}

func (u *Unsubscribe) Encode(w io.Writer) error {
	var body bytes.Buffer
	if err := writeU16(&body, u.PacketID); err != nil {
		return err
	}
	if u.Version == V5 {
		if err := u.Properties.Encode(&body); err != nil {
			return err
		}
	}
	for _, f := range u.TopicFilters {
		if err := writeUTF8(&body, f); err != nil {
			return err
		}
	}
	return flush(w, UNSUBSCRIBE, 0x02, &body)
}

func (ua *UnsubAck) Encode(w io.Writer) error {
	var body bytes.Buffer
	if err := writeU16(&body, ua.PacketID); err != nil {
		return err
	}
	if ua.Version == V5 {
		if err := ua.Properties.Encode(&body); err != nil {
			return err
		}
		for _, rc := range ua.ReasonCodes {
			if err := writeByte(&body, byte(rc)); err != nil {
				return err
			}
		}
	}
	return flush(w, UNSUBACK, 0, &body)
}

func (PingReq) Encode(w io.Writer) error  { return writeFixedHeader(w, PINGREQ, 0, 0) }
func (PingResp) Encode(w io.Writer) error { return writeFixedHeader(w, PINGRESP, 0, 0) }

func (d *Disconnect) Encode(w io.Writer) error {
	if d.Version != V5 {
		return writeFixedHeader(w, DISCONNECT, 0, 0)
	}
	var body bytes.Buffer
	if d.ReasonCode != RCSuccess || len(d.Properties.List) > 0 {
		if err := writeByte(&body, byte(d.ReasonCode)); err != nil {
			return err
		}
		if len(d.Properties.List) > 0 {
			if err := d.Properties.Encode(&body); err != nil {
				return err
			}
		}
	}
	return flush(w, DISCONNECT, 0, &body)
}

func (a *Auth) Encode(w io.Writer) error {
	var body bytes.Buffer
	if a.ReasonCode != RCSuccess || len(a.Properties.List) > 0 {
		if err := writeByte(&body, byte(a.ReasonCode)); err != nil {
			return err
		}
		if len(a.Properties.List) > 0 {
			if err := a.Properties.Encode(&body); err != nil {
				return err
			}
		}
	}
	return flush(w, AUTH, 0, &body)
}

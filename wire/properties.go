package wire

import "io"

// PropertyID identifies an MQTT 5.0 property. There is no v3/v3.1.1
// equivalent: properties are parsed/encoded only when the negotiated
// ProtocolVersion is V5.
type PropertyID byte

const (
	PropPayloadFormatIndicator          PropertyID = 0x01
	PropMessageExpiryInterval           PropertyID = 0x02
	PropContentType                     PropertyID = 0x03
	PropResponseTopic                   PropertyID = 0x08
	PropCorrelationData                 PropertyID = 0x09
	PropSubscriptionIdentifier          PropertyID = 0x0B
	PropSessionExpiryInterval           PropertyID = 0x11
	PropAssignedClientIdentifier        PropertyID = 0x12
	PropServerKeepAlive                 PropertyID = 0x13
	PropAuthenticationMethod            PropertyID = 0x15
	PropAuthenticationData              PropertyID = 0x16
	PropRequestProblemInformation       PropertyID = 0x17
	PropWillDelayInterval                PropertyID = 0x18
	PropRequestResponseInformation      PropertyID = 0x19
	PropResponseInformation             PropertyID = 0x1A
	PropServerReference                 PropertyID = 0x1C
	PropReasonString                    PropertyID = 0x1F
	PropReceiveMaximum                  PropertyID = 0x21
	PropTopicAliasMaximum               PropertyID = 0x22
	PropTopicAlias                      PropertyID = 0x23
	PropMaximumQoS                      PropertyID = 0x24
	PropRetainAvailable                 PropertyID = 0x25
	PropUserProperty                    PropertyID = 0x26
	PropMaximumPacketSize               PropertyID = 0x27
	PropWildcardSubscriptionAvailable   PropertyID = 0x28
	PropSubscriptionIdentifierAvailable PropertyID = 0x29
	PropSharedSubscriptionAvailable     PropertyID = 0x2A
)

type propertyType byte

const (
	typeByte propertyType = iota
	typeTwoByteInt
	typeFourByteInt
	typeVarInt
	typeUTF8String
	typeUTF8Pair
	typeBinary
)

type propertySpec struct {
	kind     propertyType
	multiple bool
}

var propertySpecs = map[PropertyID]propertySpec{
	PropPayloadFormatIndicator:          {typeByte, false},
	PropMessageExpiryInterval:           {typeFourByteInt, false},
	PropContentType:                     {typeUTF8String, false},
	PropResponseTopic:                   {typeUTF8String, false},
	PropCorrelationData:                 {typeBinary, false},
	PropSubscriptionIdentifier:          {typeVarInt, true},
	PropSessionExpiryInterval:           {typeFourByteInt, false},
	PropAssignedClientIdentifier:        {typeUTF8String, false},
	PropServerKeepAlive:                 {typeTwoByteInt, false},
	PropAuthenticationMethod:            {typeUTF8String, false},
	PropAuthenticationData:              {typeBinary, false},
	PropRequestProblemInformation:       {typeByte, false},
	PropWillDelayInterval:               {typeFourByteInt, false},
	PropRequestResponseInformation:      {typeByte, false},
	PropResponseInformation:             {typeUTF8String, false},
	PropServerReference:                 {typeUTF8String, false},
	PropReasonString:                    {typeUTF8String, false},
	PropReceiveMaximum:                  {typeTwoByteInt, false},
	PropTopicAliasMaximum:               {typeTwoByteInt, false},
	PropTopicAlias:                      {typeTwoByteInt, false},
	PropMaximumQoS:                      {typeByte, false},
	PropRetainAvailable:                 {typeByte, false},
	PropUserProperty:                    {typeUTF8Pair, true},
	PropMaximumPacketSize:               {typeFourByteInt, false},
	PropWildcardSubscriptionAvailable:   {typeByte, false},
	PropSubscriptionIdentifierAvailable: {typeByte, false},
	PropSharedSubscriptionAvailable:     {typeByte, false},
}

// UserProperty is a v5 key-value user property pair.
type UserProperty struct {
	Key   string
	Value string
}

// Property is a single decoded v5 property: ID plus a type-specific Go value
// (byte, uint16, uint32, string, []byte, or UserProperty).
type Property struct {
	ID    PropertyID
	Value interface{}
}

// Properties is an ordered, possibly-empty collection of v5 properties
// attached to one control packet.
type Properties struct {
	List []Property
}

// Get returns the first property with id, or nil.
func (p *Properties) Get(id PropertyID) *Property {
	for i := range p.List {
		if p.List[i].ID == id {
			return &p.List[i]
		}
	}
	return nil
}

// UserProperties returns all PropUserProperty entries.
func (p *Properties) UserProperties() []UserProperty {
	var out []UserProperty
	for _, prop := range p.List {
		if prop.ID == PropUserProperty {
			out = append(out, prop.Value.(UserProperty))
		}
	}
	return out
}

// Add appends a property, rejecting duplicates of non-repeatable kinds.
func (p *Properties) Add(id PropertyID, value interface{}) error {
	spec, ok := propertySpecs[id]
	if !ok {
		return ErrInvalidProperty
	}
	if !spec.multiple && p.Get(id) != nil {
		return ErrDuplicateProperty
	}
	p.List = append(p.List, Property{ID: id, Value: value})
	return nil
}

// ParseProperties reads the property-length-prefixed block MQTT 5.0 attaches
// to most control packets. Unknown-but-plausible IDs are never silently
// accepted: an unrecognized ID is a malformed packet, per spec §4.1's
// InvalidProperty category; callers in ignorable positions (e.g. CONNECT)
// may choose to log and continue for specific known-but-unused IDs instead
// of calling this for those.
func ParseProperties(r io.Reader) (Properties, error) {
	length, err := DecodeVarInt(r)
	if err != nil {
		return Properties{}, err
	}
	if length == 0 {
		return Properties{}, nil
	}
	lr := &io.LimitedReader{R: r, N: int64(length)}
	var props Properties
	for lr.N > 0 {
		prop, err := parseProperty(lr)
		if err != nil {
			return Properties{}, err
		}
		props.List = append(props.List, prop)
	}
	return props, nil
}

func parseProperty(r io.Reader) (Property, error) {
	idByte, err := readByte(r)
	if err != nil {
		return Property{}, err
	}
	id := PropertyID(idByte)
	spec, ok := propertySpecs[id]
	if !ok {
		return Property{}, ErrInvalidProperty
	}
	prop := Property{ID: id}
	switch spec.kind {
	case typeByte:
		prop.Value, err = readByte(r)
	case typeTwoByteInt:
		prop.Value, err = readU16(r)
	case typeFourByteInt:
		prop.Value, err = readU32(r)
	case typeVarInt:
		prop.Value, err = DecodeVarInt(r)
	case typeUTF8String:
		prop.Value, err = readUTF8(r)
	case typeUTF8Pair:
		var key, val string
		if key, err = readUTF8(r); err == nil {
			val, err = readUTF8(r)
		}
		prop.Value = UserProperty{Key: key, Value: val}
	case typeBinary:
		prop.Value, err = readBinary(r)
	}
	if err != nil {
		return Property{}, err
	}
	return prop, nil
}

func propertyEncodedLen(prop Property) int {
	n := 1
	switch propertySpecs[prop.ID].kind {
	case typeByte:
		n += 1
	case typeTwoByteInt:
		n += 2
	case typeFourByteInt:
		n += 4
	case typeVarInt:
		n += SizeVarInt(prop.Value.(uint32))
	case typeUTF8String:
		n += 2 + len(prop.Value.(string))
	case typeUTF8Pair:
		up := prop.Value.(UserProperty)
		n += 2 + len(up.Key) + 2 + len(up.Value)
	case typeBinary:
		n += 2 + len(prop.Value.([]byte))
	}
	return n
}

// EncodedLen returns the byte length of the property block's contents
// (not counting the length prefix itself).
func (p Properties) EncodedLen() uint32 {
	var n int
	for _, prop := range p.List {
		n += propertyEncodedLen(prop)
	}
	return uint32(n)
}

// Encode writes the property-length-prefixed block to w.
func (p Properties) Encode(w io.Writer) error {
	length := p.EncodedLen()
	lenBytes, err := EncodeVarInt(length)
	if err != nil {
		return err
	}
	if _, err := w.Write(lenBytes); err != nil {
		return err
	}
	for _, prop := range p.List {
		if err := encodeProperty(w, prop); err != nil {
			return err
		}
	}
	return nil
}

func encodeProperty(w io.Writer, prop Property) error {
	if _, err := w.Write([]byte{byte(prop.ID)}); err != nil {
		return err
	}
	switch propertySpecs[prop.ID].kind {
	case typeByte:
		return writeByte(w, prop.Value.(byte))
	case typeTwoByteInt:
		return writeU16(w, prop.Value.(uint16))
	case typeFourByteInt:
		return writeU32(w, prop.Value.(uint32))
	case typeVarInt:
		b, err := EncodeVarInt(prop.Value.(uint32))
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case typeUTF8String:
		return writeUTF8(w, prop.Value.(string))
	case typeUTF8Pair:
		up := prop.Value.(UserProperty)
		if err := writeUTF8(w, up.Key); err != nil {
			return err
		}
		return writeUTF8(w, up.Value)
	case typeBinary:
		return writeBinary(w, prop.Value.([]byte))
	}
	return ErrInvalidProperty
}

// --- primitive read/write helpers shared across the codec ---

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, ErrNeedMoreData
		}
		return 0, err
	}
	return b[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, ErrNeedMoreData
		}
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, ErrNeedMoreData
		}
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func readUTF8(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrNeedMoreData
	}
	if err := validateUTF8String(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBinary(r io.Reader) ([]byte, error) {
	n, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrNeedMoreData
	}
	return buf, nil
}

func writeByte(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16(w io.Writer, v uint16) error {
	_, err := w.Write([]byte{byte(v >> 8), byte(v)})
	return err
}

func writeU32(w io.Writer, v uint32) error {
	_, err := w.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	return err
}

func writeUTF8(w io.Writer, s string) error {
	if err := writeU16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeBinary(w io.Writer, b []byte) error {
	if err := writeU16(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

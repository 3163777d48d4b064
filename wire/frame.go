package wire

import "io"

// ReadMessage reads one complete control packet from r: the fixed header,
// then exactly RemainingLength bytes of body, then dispatches to DecodeBody.
// version should be V3 (zero value acceptable) before CONNECT is known; the
// caller passes the negotiated version for every subsequent read.
//
// On a body whose declared size would exceed maxPacketSize (0 = unbounded),
// ReadMessage returns (PacketTooLargeMsg{}, nil) without attempting to read
// the body, matching spec §4.1's internal sentinel contract.
func ReadMessage(r io.Reader, maxPacketSize uint32, version ProtocolVersion) (Message, error) {
	fh, err := ParseFixedHeader(r, maxPacketSize)
	if err != nil {
		if err == PacketTooLarge {
			return PacketTooLargeMsg{}, nil
		}
		return nil, err
	}

	body := make([]byte, fh.RemainingLength)
	if fh.RemainingLength > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrNeedMoreData
			}
			return nil, err
		}
	}

	return DecodeBody(fh, body, version)
}

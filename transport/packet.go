package transport

const (
	longHeaderForm  = 0x80
	cnxIDLen        = 8
	longHeaderPNLen = 4
)

// packetType is the on-wire long-header packet type, or a synthetic value
// for the short (1-RTT) header which carries no explicit type byte.
type packetType int

const (
	packetTypeVersionNegotiation packetType = 1
	packetTypeClientInitial      packetType = 2
	packetTypeServerStatelessRetry packetType = 3
	packetTypeServerCleartext     packetType = 4
	packetTypeClientCleartext     packetType = 5
	packetTypeZeroRTT             packetType = 6
	packetTypePublicReset         packetType = 9
	packetTypeShort               packetType = 0x100 // synthetic: short header, 1-RTT
)

func (t packetType) String() string {
	switch t {
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeClientInitial:
		return "client_initial"
	case packetTypeServerStatelessRetry:
		return "server_stateless_retry"
	case packetTypeServerCleartext:
		return "server_cleartext"
	case packetTypeClientCleartext:
		return "client_cleartext"
	case packetTypeZeroRTT:
		return "zero_rtt"
	case packetTypePublicReset:
		return "public_reset"
	case packetTypeShort:
		return "1rtt"
	default:
		return "unknown"
	}
}

func (t packetType) isLongHeader() bool { return t != packetTypeShort }

// cleartext long-header packets use FNV-1a; everything else (1-RTT short
// header) uses the negotiated AEAD.
func (t packetType) isCleartext() bool {
	switch t {
	case packetTypeVersionNegotiation, packetTypeClientInitial, packetTypeServerStatelessRetry,
		packetTypeServerCleartext, packetTypeClientCleartext:
		return true
	default:
		return false
	}
}

type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
}

// packet is the result of parsing an inbound datagram: the header plus
// whatever metadata the logger or receiver needs, independent of whether
// decryption of the payload has happened yet.
type packet struct {
	typ               packetType
	header            packetHeader
	packetNumber      uint64
	payloadLen        int
	supportedVersions []uint32
	token             []byte
}

// PeekHeader parses the header of data and returns its destination
// connection id, plus whether it is a long-header client-initial packet,
// which an embedder needs to create a new server-side Conn via Accept.
// The header carries a single connection id, so scid is always nil; for a
// header that does not parse, both ids are nil and isClientInitial is
// false. It performs no integrity check; that happens once inside
// Conn.Write.
func PeekHeader(data []byte) (dcid, scid []byte, isClientInitial bool) {
	p, _, ok := parsePacket(data)
	if !ok {
		return nil, nil, false
	}
	return p.header.dcid, p.header.scid, p.typ == packetTypeClientInitial
}

// parsePacket classifies and parses the header of an inbound datagram. It
// does not verify integrity or decrypt; Conn.Write does that once the
// connection (and therefore keys) are resolved.
func parsePacket(data []byte) (*packet, int, bool) {
	if len(data) < 1 {
		return nil, 0, false
	}
	if data[0]&longHeaderForm != 0 {
		return parseLongHeaderPacket(data)
	}
	return parseShortHeaderPacket(data)
}

func parseLongHeaderPacket(data []byte) (*packet, int, bool) {
	if len(data) < 1+cnxIDLen+longHeaderPNLen+4 {
		return nil, 0, false
	}
	typ := packetType(data[0] &^ longHeaderForm)
	pos := 1
	dcid := append([]byte(nil), data[pos:pos+cnxIDLen]...)
	pos += cnxIDLen
	pn, _ := getUint32(data[pos:])
	pos += longHeaderPNLen
	version, _ := getUint32(data[pos:])
	pos += 4

	p := &packet{
		typ:          typ,
		header:       packetHeader{version: version, dcid: dcid},
		packetNumber: uint64(pn),
		payloadLen:   len(data) - pos,
	}
	if typ == packetTypeVersionNegotiation {
		versions := make([]uint32, 0, (len(data)-pos)/4)
		for ; pos+4 <= len(data); pos += 4 {
			v, _ := getUint32(data[pos:])
			versions = append(versions, v)
		}
		p.supportedVersions = versions
		return p, len(data), true
	}
	return p, pos, true
}

func parseShortHeaderPacket(data []byte) (*packet, int, bool) {
	if len(data) < 1 {
		return nil, 0, false
	}
	if data[0]&0x18 != 0x18 || data[0]&0x07 != 0x03 {
		return nil, 0, false // fixed bits 4:3 and PPP must read "11" / "011"
	}
	hasCnxID := data[0]&0x40 != 0
	pos := 1
	var dcid []byte
	if hasCnxID {
		if len(data) < pos+cnxIDLen {
			return nil, 0, false
		}
		dcid = append([]byte(nil), data[pos:pos+cnxIDLen]...)
		pos += cnxIDLen
	}
	if len(data) < pos+4 {
		return nil, 0, false
	}
	pn, _ := getUint32(data[pos:])
	pos += 4
	return &packet{
		typ:          packetTypeShort,
		header:       packetHeader{dcid: dcid},
		packetNumber: uint64(pn),
		payloadLen:   len(data) - pos,
	}, pos, true
}

// buildLongHeader writes the long-header prefix (byte 0, dcid, truncated
// packet number, version) to a fresh buffer and returns it.
func buildLongHeader(typ packetType, dcid []byte, pn uint64, version uint32) []byte {
	b := make([]byte, 1+cnxIDLen+longHeaderPNLen+4)
	b[0] = longHeaderForm | byte(typ)
	copy(b[1:], dcid)
	putUint32(b[1+cnxIDLen:], uint32(pn))
	putUint32(b[1+cnxIDLen+longHeaderPNLen:], version)
	return b
}

// buildShortHeader writes the short-header prefix: C K 1 1 P P P with PPP
// fixed to 011 (the 32-bit packet-number variant), an optional dcid, and
// the 4-byte packet number.
func buildShortHeader(dcid []byte, keyPhase bool, pn uint64) []byte {
	typ := byte(0x1b) // bits 4:3 = "11" (0x18), low 3 bits "011": the fixed 32-bit packet-number variant
	if len(dcid) > 0 {
		typ |= 0x40
	}
	if keyPhase {
		typ |= 0x20
	}
	b := make([]byte, 1, 1+cnxIDLen+4)
	b[0] = typ
	b = append(b, dcid...)
	tmp := make([]byte, 4)
	putUint32(tmp, uint32(pn))
	return append(b, tmp...)
}

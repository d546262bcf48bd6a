package transport

import "fmt"

// Frame type identifiers. STREAM frames use the top bit of the first byte
// as a marker (0x80) with a packed bitfield in the low bits; every other
// frame type is a single explicit byte below 0x80.
const (
	frameTypePadding         = 0x00
	frameTypeRstStream       = 0x01
	frameTypeConnectionClose = 0x02
	frameTypeMaxData         = 0x04
	frameTypeMaxStreamData   = 0x05
	frameTypeMaxStreamID     = 0x06
	frameTypePing            = 0x07
	frameTypeBlocked         = 0x08
	frameTypeStreamBlocked   = 0x09
	frameTypeStreamIDNeeded  = 0x0a
	frameTypeNewConnectionID = 0x0b
	frameTypeStopSending     = 0x0c
	frameTypeAck             = 0x0d

	streamFrameTypeBit     = 0x80
	streamFrameFinBit      = 0x20
	streamFrameLenBit      = 0x01
	streamFrameIDLenShift  = 3
	streamFrameIDLenMask   = 0x3 << streamFrameIDLenShift
	streamFrameOffLenShift = 1
	streamFrameOffLenMask  = 0x3 << streamFrameOffLenShift
)

// frame is implemented by every decoded frame value. isPureAck reports
// whether the frame carries no retransmittable content (only ACK and
// PADDING qualify); the retransmitter uses this to decide whether a lost
// packet needs replacement frames.
type frame interface {
	isPureAck() bool
}

type paddingFrame struct{}

func (*paddingFrame) isPureAck() bool { return true }

type pingFrame struct{}

func (*pingFrame) isPureAck() bool { return false }

type ackRangeBlock struct {
	gap    uint64 // packets between this block and the previous (newer) one
	length uint64 // block length - 1, i.e. number of packet numbers covered minus one
}

type ackFrame struct {
	largestAck uint64
	ackDelay   uint64 // microseconds
	blocks     []ackRangeBlock
}

func (*ackFrame) isPureAck() bool { return true }

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint32
	finalSize uint64
}

func (*resetStreamFrame) isPureAck() bool { return false }

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint32
}

func (*stopSendingFrame) isPureAck() bool { return false }

type streamFrame struct {
	streamID uint64
	offset   uint64
	fin      bool
	data     []byte
}

func (*streamFrame) isPureAck() bool { return false }

type maxDataFrame struct {
	maximumData uint64
}

func (*maxDataFrame) isPureAck() bool { return false }

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func (*maxStreamDataFrame) isPureAck() bool { return false }

type maxStreamIDFrame struct {
	maximumStreamID uint64
}

func (*maxStreamIDFrame) isPureAck() bool { return false }

type blockedFrame struct{}

func (*blockedFrame) isPureAck() bool { return false }

type streamBlockedFrame struct {
	streamID uint64
	offset   uint64
}

func (*streamBlockedFrame) isPureAck() bool { return false }

type streamIDNeededFrame struct{}

func (*streamIDNeededFrame) isPureAck() bool { return false }

type newConnectionIDFrame struct {
	sequence     uint64
	connectionID []byte
}

func (*newConnectionIDFrame) isPureAck() bool { return false }

type connectionCloseFrame struct {
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func (*connectionCloseFrame) isPureAck() bool { return false }

// encodeFrame appends the wire encoding of f to b, returning the new slice.
func encodeFrame(b []byte, f frame) []byte {
	switch f := f.(type) {
	case *paddingFrame:
		return append(b, frameTypePadding)
	case *pingFrame:
		return append(b, frameTypePing)
	case *ackFrame:
		return encodeAckFrame(b, f)
	case *resetStreamFrame:
		b = append(b, frameTypeRstStream)
		b = appendVarintU64(b, f.streamID)
		tmp := make([]byte, 4)
		putUint32(tmp, f.errorCode)
		b = append(b, tmp...)
		return appendVarintU64(b, f.finalSize)
	case *stopSendingFrame:
		b = append(b, frameTypeStopSending)
		b = appendVarintU64(b, f.streamID)
		tmp := make([]byte, 4)
		putUint32(tmp, f.errorCode)
		return append(b, tmp...)
	case *streamFrame:
		return encodeStreamFrame(b, f)
	case *maxDataFrame:
		b = append(b, frameTypeMaxData)
		return appendVarintU64(b, f.maximumData)
	case *maxStreamDataFrame:
		b = append(b, frameTypeMaxStreamData)
		b = appendVarintU64(b, f.streamID)
		return appendVarintU64(b, f.maximumData)
	case *maxStreamIDFrame:
		b = append(b, frameTypeMaxStreamID)
		return appendVarintU64(b, f.maximumStreamID)
	case *blockedFrame:
		return append(b, frameTypeBlocked)
	case *streamBlockedFrame:
		b = append(b, frameTypeStreamBlocked)
		b = appendVarintU64(b, f.streamID)
		return appendVarintU64(b, f.offset)
	case *streamIDNeededFrame:
		return append(b, frameTypeStreamIDNeeded)
	case *newConnectionIDFrame:
		b = append(b, frameTypeNewConnectionID)
		b = appendVarintU64(b, f.sequence)
		tmp := make([]byte, 2+len(f.connectionID))
		putBytes16(tmp, f.connectionID)
		return append(b, tmp...)
	case *connectionCloseFrame:
		return encodeConnectionCloseFrame(b, f)
	default:
		panic(fmt.Sprintf("transport: unknown frame type %T", f))
	}
}

// appendVarintU64 encodes an 8-byte big-endian integer; the codec uses a
// single fixed width per field rather than a self-describing varint.
func appendVarintU64(b []byte, v uint64) []byte {
	tmp := make([]byte, 8)
	putUint64(tmp, v)
	return append(b, tmp...)
}

func encodeStreamFrame(b []byte, f *streamFrame) []byte {
	typ := byte(streamFrameTypeBit)
	if f.fin {
		typ |= streamFrameFinBit
	}
	idLen := varintWidthCode(f.streamID)
	offLen := offsetWidthCode(f.offset)
	typ |= byte(idLen) << streamFrameIDLenShift
	typ |= byte(offLen) << streamFrameOffLenShift
	typ |= streamFrameLenBit
	b = append(b, typ)
	b = appendVarWidth(b, f.streamID, idWidths[idLen])
	if offLen > 0 {
		b = appendVarWidth(b, f.offset, offsetWidths[offLen])
	}
	tmp := make([]byte, 2)
	putUint16(tmp, uint16(len(f.data)))
	b = append(b, tmp...)
	return append(b, f.data...)
}

// idWidths/offsetWidths map the 2-bit length codes in the STREAM frame's
// type byte to the number of bytes used for the stream id / offset field.
var idWidths = [4]int{1, 2, 3, 4}
var offsetWidths = [4]int{0, 2, 4, 8}

func varintWidthCode(v uint64) int {
	switch {
	case v < 1<<8:
		return 0
	case v < 1<<16:
		return 1
	case v < 1<<24:
		return 2
	default:
		return 3
	}
}

func offsetWidthCode(v uint64) int {
	switch {
	case v == 0:
		return 0
	case v < 1<<16:
		return 1
	case v < 1<<32:
		return 2
	default:
		return 3
	}
}

func appendVarWidth(b []byte, v uint64, width int) []byte {
	switch width {
	case 1:
		return append(b, byte(v))
	case 2:
		tmp := make([]byte, 2)
		putUint16(tmp, uint16(v))
		return append(b, tmp...)
	case 3:
		tmp := make([]byte, 3)
		putUint24(tmp, uint32(v))
		return append(b, tmp...)
	case 4:
		tmp := make([]byte, 4)
		putUint32(tmp, uint32(v))
		return append(b, tmp...)
	case 8:
		return appendVarintU64(b, v)
	default:
		return b
	}
}

func getVarWidth(b []byte, width int) (uint64, int, bool) {
	switch width {
	case 0:
		return 0, 0, true
	case 1:
		if len(b) < 1 {
			return 0, 0, false
		}
		return uint64(b[0]), 1, true
	case 2:
		v, ok := getUint16(b)
		return uint64(v), 2, ok
	case 3:
		v, ok := getUint24(b)
		return uint64(v), 3, ok
	case 4:
		v, ok := getUint32(b)
		return uint64(v), 4, ok
	case 8:
		v, ok := getUint64(b)
		return v, 8, ok
	default:
		return 0, 0, false
	}
}

func encodeAckFrame(b []byte, f *ackFrame) []byte {
	b = append(b, frameTypeAck)
	b = appendVarintU64(b, f.largestAck)
	tmp := make([]byte, 2)
	putUint16(tmp, encodeTime16(f.ackDelay))
	b = append(b, tmp...)
	tmp4 := make([]byte, 4)
	putUint32(tmp4, uint32(len(f.blocks)))
	b = append(b, tmp4...)
	for _, blk := range f.blocks {
		b = appendVarintU64(b, blk.gap)
		b = appendVarintU64(b, blk.length)
	}
	return b
}

func encodeConnectionCloseFrame(b []byte, f *connectionCloseFrame) []byte {
	b = append(b, frameTypeConnectionClose)
	tmp := make([]byte, 4)
	putUint32(tmp, uint32(f.errorCode))
	b = append(b, tmp...)
	b = appendVarintU64(b, f.frameType)
	return putBytes16Append(b, f.reasonPhrase)
}

func putBytes16Append(b []byte, v []byte) []byte {
	tmp := make([]byte, 2)
	putUint16(tmp, uint16(len(v)))
	b = append(b, tmp...)
	return append(b, v...)
}

// decodeFrame parses a single frame from b, returning the frame, the
// number of bytes consumed, and ok=false on a malformed encoding.
func decodeFrame(b []byte) (frame, int, bool) {
	if len(b) == 0 {
		return nil, 0, false
	}
	typ := b[0]
	if typ&streamFrameTypeBit != 0 {
		return decodeStreamFrame(b)
	}
	switch typ {
	case frameTypePadding:
		return &paddingFrame{}, 1, true
	case frameTypePing:
		return &pingFrame{}, 1, true
	case frameTypeAck:
		return decodeAckFrame(b)
	case frameTypeRstStream:
		return decodeRstStreamFrame(b)
	case frameTypeStopSending:
		return decodeStopSendingFrame(b)
	case frameTypeMaxData:
		v, n, ok := getUint64(b[1:])
		if !ok {
			return nil, 0, false
		}
		return &maxDataFrame{maximumData: v}, 1 + n, true
	case frameTypeMaxStreamData:
		return decodeMaxStreamDataFrame(b)
	case frameTypeMaxStreamID:
		v, n, ok := getUint64(b[1:])
		if !ok {
			return nil, 0, false
		}
		return &maxStreamIDFrame{maximumStreamID: v}, 1 + n, true
	case frameTypeBlocked:
		return &blockedFrame{}, 1, true
	case frameTypeStreamBlocked:
		return decodeStreamBlockedFrame(b)
	case frameTypeStreamIDNeeded:
		return &streamIDNeededFrame{}, 1, true
	case frameTypeNewConnectionID:
		return decodeNewConnectionIDFrame(b)
	case frameTypeConnectionClose:
		return decodeConnectionCloseFrame(b)
	default:
		return nil, 0, false
	}
}

func decodeStreamFrame(b []byte) (frame, int, bool) {
	typ := b[0]
	idLen := idWidths[(typ&streamFrameIDLenMask)>>streamFrameIDLenShift]
	offLen := offsetWidths[(typ&streamFrameOffLenMask)>>streamFrameOffLenShift]
	pos := 1
	streamID, n, ok := getVarWidth(b[pos:], idLen)
	if !ok {
		return nil, 0, false
	}
	pos += n
	offset, n, ok := getVarWidth(b[pos:], offLen)
	if !ok {
		return nil, 0, false
	}
	pos += n
	var length uint64
	if typ&streamFrameLenBit != 0 {
		l, ok := getUint16(b[pos:])
		if !ok {
			return nil, 0, false
		}
		length = uint64(l)
		pos += 2
	} else {
		length = uint64(len(b) - pos)
	}
	if len(b) < pos+int(length) {
		return nil, 0, false
	}
	data := b[pos : pos+int(length)]
	pos += int(length)
	return &streamFrame{
		streamID: streamID,
		offset:   offset,
		fin:      typ&streamFrameFinBit != 0,
		data:     data,
	}, pos, true
}

func decodeAckFrame(b []byte) (frame, int, bool) {
	pos := 1
	largest, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	delay, ok := getUint16(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 2
	count, ok := getUint32(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 4
	blocks := make([]ackRangeBlock, 0, count)
	for i := uint32(0); i < count; i++ {
		gap, ok := getUint64(b[pos:])
		if !ok {
			return nil, 0, false
		}
		pos += 8
		length, ok := getUint64(b[pos:])
		if !ok {
			return nil, 0, false
		}
		pos += 8
		blocks = append(blocks, ackRangeBlock{gap: gap, length: length})
	}
	return &ackFrame{
		largestAck: largest,
		ackDelay:   decodeTime16(delay),
		blocks:     blocks,
	}, pos, true
}

func decodeRstStreamFrame(b []byte) (frame, int, bool) {
	pos := 1
	streamID, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	code, ok := getUint32(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 4
	finalSize, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	return &resetStreamFrame{streamID: streamID, errorCode: code, finalSize: finalSize}, pos, true
}

func decodeStopSendingFrame(b []byte) (frame, int, bool) {
	pos := 1
	streamID, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	code, ok := getUint32(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 4
	return &stopSendingFrame{streamID: streamID, errorCode: code}, pos, true
}

func decodeMaxStreamDataFrame(b []byte) (frame, int, bool) {
	pos := 1
	streamID, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	max, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	return &maxStreamDataFrame{streamID: streamID, maximumData: max}, pos, true
}

func decodeStreamBlockedFrame(b []byte) (frame, int, bool) {
	pos := 1
	streamID, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	offset, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	return &streamBlockedFrame{streamID: streamID, offset: offset}, pos, true
}

func decodeNewConnectionIDFrame(b []byte) (frame, int, bool) {
	pos := 1
	seq, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	cid, n, ok := getBytes16(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += n
	return &newConnectionIDFrame{sequence: seq, connectionID: append([]byte(nil), cid...)}, pos, true
}

func decodeConnectionCloseFrame(b []byte) (frame, int, bool) {
	pos := 1
	code, ok := getUint32(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 4
	frameType, ok := getUint64(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += 8
	reason, n, ok := getBytes16(b[pos:])
	if !ok {
		return nil, 0, false
	}
	pos += n
	return &connectionCloseFrame{
		errorCode:    uint64(code),
		frameType:    frameType,
		reasonPhrase: append([]byte(nil), reason...),
	}, pos, true
}

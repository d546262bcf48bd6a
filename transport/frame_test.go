package transport

import "testing"

func roundTrip(t *testing.T, f frame) frame {
	t.Helper()
	b := encodeFrame(nil, f)
	got, n, ok := decodeFrame(b)
	if !ok {
		t.Fatalf("decodeFrame failed for %T: %x", f, b)
	}
	if n != len(b) {
		t.Fatalf("decodeFrame consumed %d of %d bytes for %T", n, len(b), f)
	}
	return got
}

func TestPaddingFrameRoundTrip(t *testing.T) {
	got := roundTrip(t, &paddingFrame{})
	if _, ok := got.(*paddingFrame); !ok {
		t.Fatalf("got %T", got)
	}
}

func TestPingFrameRoundTrip(t *testing.T) {
	got := roundTrip(t, &pingFrame{})
	if _, ok := got.(*pingFrame); !ok {
		t.Fatalf("got %T", got)
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	in := &ackFrame{
		largestAck: 42,
		ackDelay:   1500,
		blocks:     []ackRangeBlock{{gap: 1, length: 2}, {gap: 3, length: 0}},
	}
	got, ok := roundTrip(t, in).(*ackFrame)
	if !ok {
		t.Fatal("wrong type")
	}
	if got.largestAck != in.largestAck || len(got.blocks) != len(in.blocks) {
		t.Fatalf("got %+v, want %+v", got, in)
	}
	if got.blocks[0] != in.blocks[0] || got.blocks[1] != in.blocks[1] {
		t.Fatalf("blocks mismatch: got %+v want %+v", got.blocks, in.blocks)
	}
}

func TestResetStreamFrameRoundTrip(t *testing.T) {
	in := &resetStreamFrame{streamID: 4, errorCode: 7, finalSize: 1024}
	got, ok := roundTrip(t, in).(*resetStreamFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestStopSendingFrameRoundTrip(t *testing.T) {
	in := &stopSendingFrame{streamID: 8, errorCode: 3}
	got, ok := roundTrip(t, in).(*stopSendingFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestStreamFrameRoundTripWithLength(t *testing.T) {
	in := &streamFrame{streamID: 4, offset: 0, fin: false, data: []byte("hello")}
	got, ok := roundTrip(t, in).(*streamFrame)
	if !ok {
		t.Fatal("wrong type")
	}
	if got.streamID != in.streamID || got.offset != in.offset || got.fin != in.fin || string(got.data) != string(in.data) {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestStreamFrameRoundTripFinAndOffset(t *testing.T) {
	in := &streamFrame{streamID: 1 << 20, offset: 1 << 40, fin: true, data: []byte("bye")}
	got, ok := roundTrip(t, in).(*streamFrame)
	if !ok {
		t.Fatal("wrong type")
	}
	if got.streamID != in.streamID || got.offset != in.offset || !got.fin || string(got.data) != string(in.data) {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestMaxDataFrameRoundTrip(t *testing.T) {
	in := &maxDataFrame{maximumData: 1 << 30}
	got, ok := roundTrip(t, in).(*maxDataFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestMaxStreamDataFrameRoundTrip(t *testing.T) {
	in := &maxStreamDataFrame{streamID: 4, maximumData: 65535}
	got, ok := roundTrip(t, in).(*maxStreamDataFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestMaxStreamIDFrameRoundTrip(t *testing.T) {
	in := &maxStreamIDFrame{maximumStreamID: 65535}
	got, ok := roundTrip(t, in).(*maxStreamIDFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestBlockedFrameRoundTrip(t *testing.T) {
	got := roundTrip(t, &blockedFrame{})
	if _, ok := got.(*blockedFrame); !ok {
		t.Fatalf("got %T", got)
	}
}

func TestStreamBlockedFrameRoundTrip(t *testing.T) {
	in := &streamBlockedFrame{streamID: 4, offset: 9000}
	got, ok := roundTrip(t, in).(*streamBlockedFrame)
	if !ok || *got != *in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestStreamIDNeededFrameRoundTrip(t *testing.T) {
	got := roundTrip(t, &streamIDNeededFrame{})
	if _, ok := got.(*streamIDNeededFrame); !ok {
		t.Fatalf("got %T", got)
	}
}

func TestNewConnectionIDFrameRoundTrip(t *testing.T) {
	in := &newConnectionIDFrame{sequence: 1, connectionID: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	got, ok := roundTrip(t, in).(*newConnectionIDFrame)
	if !ok || got.sequence != in.sequence || string(got.connectionID) != string(in.connectionID) {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestConnectionCloseFrameRoundTrip(t *testing.T) {
	in := &connectionCloseFrame{errorCode: uint64(ProtocolViolation), frameType: 7, reasonPhrase: []byte("bye")}
	got, ok := roundTrip(t, in).(*connectionCloseFrame)
	if !ok || got.errorCode != in.errorCode || got.frameType != in.frameType || string(got.reasonPhrase) != string(in.reasonPhrase) {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestDecodeFrameRejectsTruncatedInput(t *testing.T) {
	if _, _, ok := decodeFrame([]byte{frameTypeAck}); ok {
		t.Fatal("expected truncated ACK frame to fail decoding")
	}
}

func TestDecodeFrameRejectsUnknownType(t *testing.T) {
	if _, _, ok := decodeFrame([]byte{0x7f}); ok {
		t.Fatal("expected unknown frame type to fail decoding")
	}
}

func TestIsPureAck(t *testing.T) {
	pure := []frame{&paddingFrame{}, &ackFrame{}}
	for _, f := range pure {
		if !f.isPureAck() {
			t.Fatalf("%T should be pure ack", f)
		}
	}
	notPure := []frame{&pingFrame{}, &streamFrame{}, &maxDataFrame{}, &resetStreamFrame{}}
	for _, f := range notPure {
		if f.isPureAck() {
			t.Fatalf("%T should not be pure ack", f)
		}
	}
}

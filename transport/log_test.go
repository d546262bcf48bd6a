package transport

import (
	"testing"
	"time"
)

func TestLogFramePadding(t *testing.T) {
	testLogFrame(t, &paddingFrame{}, "frame_type=padding")
}

func TestLogFramePing(t *testing.T) {
	testLogFrame(t, &pingFrame{}, "frame_type=ping")
}

func TestLogFrameAck(t *testing.T) {
	f := &ackFrame{
		largestAck: 1,
		ackDelay:   2,
		blocks:     []ackRangeBlock{{gap: 0, length: 3}},
	}
	testLogFrame(t, f, "frame_type=ack largest_acked=1 ack_delay=2 block_count=1")
}

func TestLogFrameResetStream(t *testing.T) {
	f := &resetStreamFrame{streamID: 1, errorCode: 2, finalSize: 3}
	testLogFrame(t, f, "frame_type=reset_stream stream_id=1 error_code=2 final_size=3")
}

func TestLogFrameStopSending(t *testing.T) {
	f := &stopSendingFrame{streamID: 1, errorCode: 2}
	testLogFrame(t, f, "frame_type=stop_sending stream_id=1 error_code=2")
}

func TestLogFrameStream(t *testing.T) {
	f := &streamFrame{streamID: 2, offset: 3, fin: true, data: make([]byte, 4)}
	testLogFrame(t, f, "frame_type=stream stream_id=2 offset=3 length=4 fin=true")
}

func TestLogFrameMaxData(t *testing.T) {
	f := &maxDataFrame{maximumData: 1}
	testLogFrame(t, f, "frame_type=max_data maximum=1")
}

func TestLogFrameMaxStreamData(t *testing.T) {
	f := &maxStreamDataFrame{streamID: 1, maximumData: 2}
	testLogFrame(t, f, "frame_type=max_stream_data stream_id=1 maximum=2")
}

func TestLogFrameMaxStreamID(t *testing.T) {
	f := &maxStreamIDFrame{maximumStreamID: 1}
	testLogFrame(t, f, "frame_type=max_stream_id maximum=1")
}

func TestLogFrameBlocked(t *testing.T) {
	testLogFrame(t, &blockedFrame{}, "frame_type=blocked")
}

func TestLogFrameStreamBlocked(t *testing.T) {
	f := &streamBlockedFrame{streamID: 1, offset: 2}
	testLogFrame(t, f, "frame_type=stream_blocked stream_id=1 offset=2")
}

func TestLogFrameStreamIDNeeded(t *testing.T) {
	testLogFrame(t, &streamIDNeededFrame{}, "frame_type=stream_id_needed")
}

func TestLogFrameNewConnectionID(t *testing.T) {
	f := &newConnectionIDFrame{sequence: 1, connectionID: []byte{0xab, 0xcd}}
	testLogFrame(t, f, "frame_type=new_connection_id sequence=1 connection_id=abcd")
}

func TestLogFrameConnectionClose(t *testing.T) {
	f := &connectionCloseFrame{errorCode: 0x122, frameType: 99, reasonPhrase: []byte("reason")}
	testLogFrame(t, f, "frame_type=connection_close error_code=crypto_error_290 raw_error_code=290 reason=reason trigger_frame_type=99")
}

func testLogFrame(t *testing.T, f frame, expect string) {
	tm := time.Date(2020, time.January, 5, 2, 3, 4, 5, time.UTC)
	e := newLogEventFrame(tm, logEventFramesProcessed, f)
	expect = "2020-01-05T02:03:04Z frames_processed " + expect
	actual := e.String()
	if expect != actual {
		t.Helper()
		t.Fatalf("\nexpect %v\nactual %v", expect, actual)
	}
}

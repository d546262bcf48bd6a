package transport

import "testing"

func TestFlowControlRecvWithinLimit(t *testing.T) {
	f := flowControl{maxDataLocal: 100}
	if err := f.recv(50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFlowControlRecvViolation(t *testing.T) {
	f := flowControl{maxDataLocal: 100}
	if err := f.recv(101); err == nil || err.Code != FlowControlError {
		t.Fatalf("expected FlowControlError, got %v", err)
	}
}

func TestFlowControlShouldSendMaxDataAtHalf(t *testing.T) {
	f := flowControl{maxDataLocal: 100}
	if _, should := f.shouldSendMaxData(); should {
		t.Fatal("should not raise the limit before half is consumed")
	}
	f.dataReceived = 51
	newLimit, should := f.shouldSendMaxData()
	if !should || newLimit != 200 {
		t.Fatalf("got %d,%v want 200,true", newLimit, should)
	}
}

func TestFlowControlCanSendRespectsRemoteLimit(t *testing.T) {
	f := flowControl{maxDataRemote: 10}
	if !f.canSend(10) {
		t.Fatal("sending exactly up to the limit must be allowed")
	}
	if f.canSend(11) {
		t.Fatal("sending past the limit must be rejected")
	}
	f.send(10)
	if f.canSend(1) {
		t.Fatal("no budget should remain after sending up to the limit")
	}
}

func TestStreamFlowControlMirrorsConnectionLevel(t *testing.T) {
	s := newStream(4, 100, 0)
	if err := streamRecv(s, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.dataRecv = 50
	if err := streamRecv(s, 51); err == nil {
		t.Fatal("expected a stream-level flow control violation")
	}
	s.dataRecv = 51
	if _, should := streamShouldSendMaxData(s); !should {
		t.Fatal("expected the stream limit to need raising past half")
	}
}

package transport

import "testing"

func TestOnPacketSentTracksBytesInTransit(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	r.onPacketSent(1, 1100, 200, []frame{&pingFrame{}})
	if r.bytesInTransit != 300 {
		t.Fatalf("bytesInTransit = %d, want 300", r.bytesInTransit)
	}
	if r.sendSequence != 2 {
		t.Fatalf("sendSequence = %d, want 2", r.sendSequence)
	}
}

func TestOnAckRemovesPacketAndUpdatesRTT(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	p := r.onAck(0, 1050)
	if p == nil {
		t.Fatal("expected the sent packet to be found and removed")
	}
	if r.bytesInTransit != 0 {
		t.Fatalf("bytesInTransit = %d, want 0 after ack", r.bytesInTransit)
	}
	if r.smoothedRTT != 50 {
		t.Fatalf("smoothedRTT = %d, want 50 (first sample)", r.smoothedRTT)
	}
	if r.highestAcked != 0 {
		t.Fatalf("highestAcked = %d, want 0", r.highestAcked)
	}
}

func TestOnAckOfUnknownSequenceIsNoop(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	if p := r.onAck(5, 2000); p != nil {
		t.Fatal("acking a sequence never sent must return nil")
	}
}

func TestLossCheckSackThreshold(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	p := r.oldest
	r.highestAcked = 5 // 5 newer packets acked, exceeds sackThreshold=3
	lost, timerBased := r.lossCheck(p, 1000)
	if !lost || timerBased {
		t.Fatalf("got lost=%v timerBased=%v, want lost=true timerBased=false", lost, timerBased)
	}
}

func TestLossCheckNotLostWhenFresh(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	p := r.oldest
	lost, _ := r.lossCheck(p, 1000+1)
	if lost {
		t.Fatal("a just-sent packet with no ack/time signal should not be classified as lost")
	}
}

func TestLossCheckTimerBasedAfterRTO(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	p := r.oldest
	lost, timerBased := r.lossCheck(p, 1000+defaultInitRTO+1)
	if !lost || !timerBased {
		t.Fatalf("got lost=%v timerBased=%v, want both true past the RTO", lost, timerBased)
	}
}

func TestNextWakeTimeUsesOldestPacketRTO(t *testing.T) {
	r := newLossRecovery()
	r.onPacketSent(0, 1000, 100, []frame{&pingFrame{}})
	wake := r.nextWakeTime(1000, 0, false)
	want := uint64(1000) + r.retransmitTimer
	if wake != want {
		t.Fatalf("got %d, want %d", wake, want)
	}
}

package transport

const (
	rackThreshold   = 10_000 // microseconds, §4.8 RACK-style time threshold
	sackThreshold   = 3      // packets
	maxRetransmits  = 4      // timer-based retransmits before the connection is declared dead
	defaultInitRTO  = 1_000_000
	idleTimeoutDflt = 30_000_000 // microseconds
)

// sentPacket is an in-flight packet awaiting acknowledgement, timeout, or
// supersession by a retransmission. frames holds every frame the packet
// carried; on loss the sender skips the pure-ACK ones.
type sentPacket struct {
	sequence    uint64
	sendTime    uint64
	length      int
	ackEliciting bool
	frames      []frame

	next, prev *sentPacket
}

// lossRecovery tracks the in-flight packet chain and the RTT/RTO estimators
// for a single connection, following the algorithm in picoquic's sender.c.
type lossRecovery struct {
	oldest, newest *sentPacket
	bytesInTransit uint64

	sendSequence       uint64
	highestAcked       int64
	latestTimeAcked    uint64
	nbRetransmit       int
	totalLost          int
	latestRetransmit   uint64
	retransmitTimer    uint64

	smoothedRTT uint64
	rttVar      uint64
	minRTT      uint64
	rto         uint64
}

func newLossRecovery() *lossRecovery {
	return &lossRecovery{
		highestAcked:    -1,
		retransmitTimer: defaultInitRTO,
		rto:             defaultInitRTO,
	}
}

// onPacketSent links a newly sent packet into the in-flight chain (newest
// at the head) and updates accounting.
func (r *lossRecovery) onPacketSent(seq uint64, now uint64, length int, frames []frame) {
	ackEliciting := false
	for _, f := range frames {
		if !f.isPureAck() {
			ackEliciting = true
			break
		}
	}
	p := &sentPacket{sequence: seq, sendTime: now, length: length, frames: frames, ackEliciting: ackEliciting}
	if r.newest != nil {
		r.newest.prev = p
		p.next = r.newest
	} else {
		r.oldest = p
	}
	r.newest = p
	r.sendSequence = seq + 1
	r.bytesInTransit += uint64(length)
}

func (r *lossRecovery) remove(p *sentPacket) {
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		r.oldest = p.prev
	}
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		r.newest = p.next
	}
	if r.bytesInTransit >= uint64(p.length) {
		r.bytesInTransit -= uint64(p.length)
	}
}

// onAck processes a single acknowledged packet number: removes it from the
// in-flight chain (if present) and updates RTT estimation. Returns the
// removed packet (nil if it was not in flight, e.g. a duplicate ACK).
func (r *lossRecovery) onAck(seq uint64, now uint64) *sentPacket {
	for p := r.newest; p != nil; p = p.next {
		if p.sequence == seq {
			r.remove(p)
			if int64(seq) > r.highestAcked {
				r.highestAcked = int64(seq)
			}
			r.latestTimeAcked = now
			r.updateRTT(now - p.sendTime)
			return p
		}
	}
	return nil
}

func (r *lossRecovery) updateRTT(sample uint64) {
	if r.smoothedRTT == 0 {
		r.smoothedRTT = sample
		r.rttVar = sample / 2
		r.minRTT = sample
		r.rto = r.smoothedRTT + 4*r.rttVar
		return
	}
	if sample < r.minRTT || r.minRTT == 0 {
		r.minRTT = sample
	}
	diff := sample - r.smoothedRTT
	if r.smoothedRTT > sample {
		diff = r.smoothedRTT - sample
	}
	r.rttVar += (diff - r.rttVar) / 4
	r.smoothedRTT += (sample - r.smoothedRTT) / 8
	r.rto = r.smoothedRTT + 4*r.rttVar
	if r.rto < defaultInitRTO/10 {
		r.rto = defaultInitRTO / 10
	}
}

// lossCheck classifies p per picoquic_retransmit_needed_by_packet: returns
// (lost, timerBased).
func (r *lossRecovery) lossCheck(p *sentPacket, now uint64) (lost bool, timerBased bool) {
	if r.highestAcked >= 0 {
		deltaSeq := uint64(r.highestAcked) - p.sequence
		if deltaSeq > sackThreshold {
			return true, false
		}
	}
	if r.latestTimeAcked > p.sendTime {
		deltaT := r.latestTimeAcked - p.sendTime
		if deltaT > rackThreshold {
			return true, false
		}
		if now-r.latestTimeAcked+deltaT > rackThreshold {
			return true, false
		}
	}
	timer := r.retransmitTimer
	if p.ackEliciting {
		if n := r.packetRetransmitCount(p); n > 0 {
			timer = defaultInitRTO << uint(n-1)
		}
	}
	if now-p.sendTime > timer {
		return true, true
	}
	return false, false
}

// packetRetransmitCount is a simplified stand-in for per-packet retransmit
// counters: the connection-wide nbRetransmit approximates picoquic's
// per-packet counter closely enough for the single-oldest-packet walk the
// sender performs.
func (r *lossRecovery) packetRetransmitCount(p *sentPacket) int {
	return r.nbRetransmit
}

// nextWakeTime computes min(ack deadline, RACK deadline, RTO) over the
// in-flight chain, per §4.7 step 7.
func (r *lossRecovery) nextWakeTime(now uint64, highestAckTime uint64, ackNeeded bool) uint64 {
	wake := now + idleTimeoutDflt
	if ackNeeded {
		deadline := highestAckTime + rackThreshold
		if deadline < wake {
			wake = deadline
		}
	}
	for p := r.oldest; p != nil; p = p.next {
		if r.latestTimeAcked > p.sendTime {
			deadline := p.sendTime + rackThreshold
			if deadline < wake {
				wake = deadline
			}
		}
		timer := r.retransmitTimer
		if n := r.packetRetransmitCount(p); n > 0 {
			timer = defaultInitRTO << uint(n-1)
		}
		deadline := p.sendTime + timer
		if deadline < wake {
			wake = deadline
		}
		break // only the oldest packet's RTO matters; it fires first
	}
	return wake
}

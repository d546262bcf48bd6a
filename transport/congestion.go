package transport

// Congestion control is a pluggable vtable: the sender calls Notify on
// every acknowledged packet and every detected loss (packet-threshold or
// timer-based); it does not call Notify on send or on RTT samples. The
// algorithm owns whatever
// state it needs (congestion window, slow-start threshold, ...) behind the
// CongestionState it returns from Init. This mirrors the picoquic
// congestion_algorithm_t vtable (init/notify/delete function pointers)
// rather than baking one algorithm into the connection.
type CongestionEvent int

const (
	CongestionEventAck CongestionEvent = iota
	CongestionEventPacketLoss
	CongestionEventTimerLoss
	CongestionEventSpuriousRepeat
)

// CongestionState is the opaque per-connection state owned by a
// CongestionAlgorithm implementation.
type CongestionState interface {
	// Window returns the current congestion window in bytes.
	Window() uint64
}

// CongestionAlgorithm is the vtable a connection drives its congestion
// control through.
type CongestionAlgorithm interface {
	Init() CongestionState
	Notify(state CongestionState, event CongestionEvent, ackedBytes uint64, lostBytes uint64, rtt uint64) CongestionState
}

const initialWindow = 10 * 1400 // ~10 initial-size packets, matches common QUIC stacks

// newRenoAlgorithm is the default CongestionAlgorithm: additive-increase,
// multiplicative-decrease with a slow-start phase, directly analogous to
// classic Reno/NewReno TCP congestion control.
type newRenoAlgorithm struct{}

// NewRenoCongestion returns the default congestion control algorithm.
func NewRenoCongestion() CongestionAlgorithm { return newRenoAlgorithm{} }

type newRenoState struct {
	window    uint64
	ssthresh  uint64
	recovery  bool
	recovStrt uint64
}

func (s *newRenoState) Window() uint64 { return s.window }

func (newRenoAlgorithm) Init() CongestionState {
	return &newRenoState{window: initialWindow, ssthresh: 1 << 62}
}

func (newRenoAlgorithm) Notify(cs CongestionState, event CongestionEvent, acked, lost, rtt uint64) CongestionState {
	s := cs.(*newRenoState)
	switch event {
	case CongestionEventAck:
		if s.window < s.ssthresh {
			s.window += acked // slow start: one MSS-equivalent of growth per ACKed byte batch
		} else {
			s.window += (initialWindow/10)*acked/s.window + 1 // congestion avoidance
		}
	case CongestionEventPacketLoss, CongestionEventTimerLoss:
		s.ssthresh = s.window / 2
		if s.ssthresh < initialWindow/2 {
			s.ssthresh = initialWindow / 2
		}
		s.window = s.ssthresh
	case CongestionEventSpuriousRepeat:
		// no-op: a packet believed lost was actually delayed: don't reopen
		// the window further but also don't double-penalize.
	}
	return s
}

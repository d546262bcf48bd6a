package transport

// flowControl tracks the connection-wide data limits. Stream-level limits
// live directly on the stream (maxDataLocal/maxDataRemote/dataRecv) and
// are checked the same way by the caller.
type flowControl struct {
	maxDataLocal  uint64
	maxDataRemote uint64
	dataReceived  uint64
	dataSent      uint64
}

// shouldSendMaxData implements §4.11's rule: raise once received data
// exceeds half of what we've advertised. Per the Open Question resolution
// in DESIGN.md, the caller must bump maxDataLocal in the same step it
// decides to send, not merely when the MAX_DATA frame is later ACKed --
// shouldSendMaxData returns the new limit to use for both.
func (f *flowControl) shouldSendMaxData() (newLimit uint64, should bool) {
	if 2*f.dataReceived > f.maxDataLocal {
		return f.maxDataLocal * 2, true
	}
	return f.maxDataLocal, false
}

// recv records inbound data and reports a flow-control violation if the
// peer sent more than maxDataLocal, the limit we advertised to them.
func (f *flowControl) recv(n uint64) *Error {
	f.dataReceived += n
	if f.dataReceived > f.maxDataLocal {
		return newError(FlowControlError, "connection data limit exceeded")
	}
	return nil
}

func (f *flowControl) canSend(n uint64) bool {
	return f.dataSent+n <= f.maxDataRemote
}

func (f *flowControl) send(n uint64) {
	f.dataSent += n
}

// streamShouldSendMaxData mirrors shouldSendMaxData at stream granularity.
func streamShouldSendMaxData(s *stream) (newLimit uint64, should bool) {
	if 2*s.dataRecv > s.maxDataLocal {
		return s.maxDataLocal * 2, true
	}
	return s.maxDataLocal, false
}

func streamRecv(s *stream, n uint64) *Error {
	if s.dataRecv+n > s.maxDataLocal {
		return newError(FlowControlError, "stream data limit exceeded")
	}
	return nil
}

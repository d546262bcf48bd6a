package transport

import "sort"

// streamID0 is the reserved handshake stream: never reset, never flow
// controlled, and always serviced first while a connection is handshaking.
const streamID0 = 0

type streamFlags uint8

const (
	streamFinReceived streamFlags = 1 << iota
	streamFinSent
	streamFinNotified
	streamResetRequested
	streamResetReceived
	streamResetSent
)

// fragment is a received (or pending outbound) run of bytes at a given
// stream offset.
type fragment struct {
	offset uint64
	data   []byte
}

func (f fragment) end() uint64 { return f.offset + uint64(len(f.data)) }

// stream holds per-stream reassembly and send state. Received fragments are
// kept sorted by offset and coalesced as they arrive; outbound fragments
// are a plain FIFO that the sender drains in order.
type stream struct {
	id    uint64
	flags streamFlags

	received      []fragment
	consumed      uint64
	finOffset     uint64
	haveFinOffset bool

	sendQueue    []fragment
	sent         uint64
	finRequested bool

	appData []byte // delivered, not-yet-read-by-the-application bytes

	maxDataLocal  uint64
	maxDataRemote uint64
	dataRecv      uint64
	dataSent      uint64

	localErrorCode  uint32
	remoteErrorCode uint32
}

func newStream(id uint64, maxDataLocal, maxDataRemote uint64) *stream {
	return &stream{id: id, maxDataLocal: maxDataLocal, maxDataRemote: maxDataRemote}
}

func (s *stream) isStream0() bool { return s.id == streamID0 }

// recv inserts a received fragment, discarding any portion at or before the
// consumed offset, then advances consumed across newly contiguous bytes.
// The returned slice is the newly-deliverable contiguous data, if any.
func (s *stream) recv(offset uint64, data []byte, fin bool) ([]byte, *Error) {
	end := offset + uint64(len(data))
	if fin {
		if end < s.consumed {
			return nil, newError(FinalOffsetError, "fin below consumed offset")
		}
		if s.haveFinOffset && s.finOffset != end {
			return nil, newError(FinalOffsetError, "inconsistent final size")
		}
		s.haveFinOffset = true
		s.finOffset = end
		s.flags |= streamFinReceived
	} else if s.haveFinOffset && end > s.finOffset {
		return nil, newError(FinalOffsetError, "data past final size")
	}

	if end <= s.consumed || len(data) == 0 {
		return s.drain(), nil
	}
	if offset < s.consumed {
		trim := s.consumed - offset
		offset = s.consumed
		data = data[trim:]
	}
	s.insertFragment(fragment{offset: offset, data: data})
	return s.drain(), nil
}

func (s *stream) insertFragment(f fragment) {
	i := sort.Search(len(s.received), func(i int) bool {
		return s.received[i].offset >= f.offset
	})
	s.received = append(s.received, fragment{})
	copy(s.received[i+1:], s.received[i:])
	s.received[i] = f
	s.coalesce()
}

// coalesce merges overlapping/adjacent fragments in offset order.
func (s *stream) coalesce() {
	out := s.received[:0]
	for _, f := range s.received {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if f.offset <= last.end() {
				if f.end() > last.end() {
					keep := f.end() - last.end()
					last.data = append(last.data, f.data[uint64(len(f.data))-keep:]...)
				}
				continue
			}
		}
		out = append(out, f)
	}
	s.received = out
}

// drain removes and returns the prefix of received data that is now
// contiguous with consumed, advancing the consumed offset.
func (s *stream) drain() []byte {
	if len(s.received) == 0 || s.received[0].offset > s.consumed {
		return nil
	}
	f := s.received[0]
	if f.offset < s.consumed {
		f.data = f.data[s.consumed-f.offset:]
		f.offset = s.consumed
	}
	s.received = s.received[1:]
	s.consumed += uint64(len(f.data))
	s.dataRecv = s.consumed
	return f.data
}

func (s *stream) fin() bool {
	return s.flags&streamFinReceived != 0 && s.consumed >= s.finOffset
}

// enqueue appends an outbound fragment to the send FIFO.
func (s *stream) enqueue(data []byte) {
	if len(data) == 0 {
		return
	}
	s.sendQueue = append(s.sendQueue, fragment{offset: s.sent, data: data})
	s.sent += uint64(len(data))
}

// hasPending reports whether unsent bytes remain on the send queue.
func (s *stream) hasPending() bool {
	return len(s.sendQueue) > 0
}

// nextSend returns up to maxLen bytes from the head of the send queue,
// splitting the lead fragment if necessary and joining the fragments after
// it that continue at the next offset, without removing them: the caller
// must call advance once the bytes are durably queued in a packet.
func (s *stream) nextSend(maxLen int) (offset uint64, data []byte) {
	if len(s.sendQueue) == 0 {
		return 0, nil
	}
	f := s.sendQueue[0]
	if len(f.data) >= maxLen {
		return f.offset, f.data[:maxLen]
	}
	data = f.data
	end := f.end()
	for _, g := range s.sendQueue[1:] {
		if g.offset != end || len(data) >= maxLen {
			break
		}
		n := maxLen - len(data)
		if n > len(g.data) {
			n = len(g.data)
		}
		data = append(data[:len(data):len(data)], g.data[:n]...)
		end += uint64(n)
	}
	return f.offset, data
}

func (s *stream) advance(n int) {
	for n > 0 && len(s.sendQueue) > 0 {
		f := &s.sendQueue[0]
		if n < len(f.data) {
			f.offset += uint64(n)
			f.data = f.data[n:]
			return
		}
		n -= len(f.data)
		s.sendQueue = s.sendQueue[1:]
	}
}

// requeue puts previously-sent-but-lost bytes back at the head of the send
// queue, preserving order against anything enqueued after it.
func (s *stream) requeue(offset uint64, data []byte) {
	s.sendQueue = append([]fragment{{offset: offset, data: data}}, s.sendQueue...)
}

package quic

import "io"

// Stream is the application-facing handle for one QUIC stream: an
// io.ReadWriteCloser backed by the transport package's internal reorder
// buffer and send queue. Reads return data already delivered in order by
// the transport core; writes enqueue bytes for the next outbound packet.
type Stream struct {
	id   uint64
	conn *remoteConn

	readBuf []byte
}

func newStream(id uint64, c *remoteConn) *Stream {
	return &Stream{id: id, conn: c}
}

// Write enqueues p for delivery on this stream and wakes the connection's
// send loop.
func (s *Stream) Write(p []byte) (int, error) {
	if s.conn.closed {
		return 0, io.ErrClosedPipe
	}
	s.conn.mu.Lock()
	s.conn.conn.WriteStream(s.id, p, false)
	s.conn.mu.Unlock()
	s.conn.wake()
	return len(p), nil
}

// Read copies previously delivered, buffered data into p. Data becomes
// available after the connection's handler observes an EventStream event
// for this stream id.
func (s *Stream) Read(p []byte) (int, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if len(s.readBuf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

// Close half-closes the stream for writing (sends fin once the pending
// queue drains).
func (s *Stream) Close() error {
	s.conn.mu.Lock()
	s.conn.conn.WriteStream(s.id, nil, true)
	s.conn.mu.Unlock()
	s.conn.wake()
	return nil
}

// deliver appends newly-received bytes, called by the connection goroutine
// while holding conn.mu.
func (s *Stream) deliver(p []byte) {
	s.readBuf = append(s.readBuf, p...)
}

package transport

// EventType identifies what an Event reports. Values below 100 are
// transport-level (per-stream) events; the embedding quic package defines
// its own connection-level event constants starting at 100 so both can be
// dispatched through a single switch.
type EventType int

const (
	EventNone EventType = iota
	// EventStream indicates stream data was delivered to the application.
	EventStream
	// EventStreamReset indicates the peer reset the stream.
	EventStreamReset
	// EventStreamStop indicates the peer asked us to stop sending.
	EventStreamStop
	// EventStreamComplete indicates the stream's fin has been fully consumed.
	EventStreamComplete
)

// Event reports a stream-level occurrence back to the embedder, delivered
// from Conn.Events after a call to Write.
type Event struct {
	Type      EventType
	StreamID  uint64
	ErrorCode uint64
}

func newStreamRecvEvent(id uint64) Event {
	return Event{Type: EventStream, StreamID: id}
}

func newStreamResetEvent(id uint64, code uint64) Event {
	return Event{Type: EventStreamReset, StreamID: id, ErrorCode: code}
}

func newStreamStopEvent(id uint64, code uint64) Event {
	return Event{Type: EventStreamStop, StreamID: id, ErrorCode: code}
}

func newStreamCompleteEvent(id uint64) Event {
	return Event{Type: EventStreamComplete, StreamID: id}
}

package quic

import (
	"net"

	"github.com/goburrow/quic/transport"
)

// Event is a transport.Event re-exported so callers only need to import
// one package for the common case; connection-level events defined below
// share the same EventType space, starting well clear of transport's own
// stream-level values.
type Event = transport.Event

const (
	// EventConnAccept is delivered once, on both client and server, when the
	// connection has completed its handshake.
	EventConnAccept transport.EventType = 100 + iota
	// EventConnClose is delivered once a connection has fully closed.
	EventConnClose
)

// Conn is the handle an application uses to interact with one QUIC
// connection: send/receive on streams and learn who it's talking to.
type Conn interface {
	Stream(id uint64) *Stream
	RemoteAddr() net.Addr
}

// Handler processes connection lifecycle and stream events. Serve may be
// called from any of the endpoint's per-connection goroutines, but never
// concurrently for the same Conn.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(c Conn, events []transport.Event)

func (f HandlerFunc) Serve(c Conn, events []transport.Event) { f(c, events) }

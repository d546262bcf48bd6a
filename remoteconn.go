package quic

import (
	"net"
	"sync"
	"time"

	"github.com/goburrow/quic/transport"
)

// remoteConn binds a transport.Conn to its peer address and owns the
// per-connection goroutine that drives it. Every call into the
// transport.Conn -- from that goroutine, from the endpoint's read loop
// (deliver) and from Stream methods -- is made while holding mu, so a
// single transport.Conn is never driven from two goroutines at once.
type remoteConn struct {
	scid []byte
	dcid []byte
	addr net.Addr

	// traceID is an internal correlation id distinct from the wire
	// connection id, carried purely for log correlation.
	traceID string

	conn *transport.Conn

	mu          sync.Mutex
	streams     map[uint64]*Stream
	closed      bool
	established bool

	wakeCh chan struct{}
	outCh  chan []byte // datagrams ready to hand to the socket

	lastBytesInFlight uint64
	lastLossCount     int

	endpoint *Endpoint
}

func newRemoteConn(e *Endpoint, tc *transport.Conn, addr net.Addr, scid []byte) *remoteConn {
	return &remoteConn{
		scid:     scid,
		addr:     addr,
		traceID:  newTraceID(),
		conn:     tc,
		streams:  make(map[uint64]*Stream),
		wakeCh:   make(chan struct{}, 1),
		outCh:    make(chan []byte, 16),
		endpoint: e,
	}
}

func (c *remoteConn) RemoteAddr() net.Addr { return c.addr }

// Stream returns the application-facing handle for stream id, creating it
// on first reference.
func (c *remoteConn) Stream(id uint64) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[id]
	if !ok {
		s = newStream(id, c)
		c.streams[id] = s
	}
	return s
}

func (c *remoteConn) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// run is the per-connection goroutine: it drains wake-ups, pumps outbound
// datagrams from the transport core, dispatches stream events to the
// handler, and exits once the connection reaches disconnected.
func (c *remoteConn) run(handler Handler) {
	buf := make([]byte, 2048)
	var handlerEvents []transport.Event

	emit := func(events []transport.Event) {
		if len(events) == 0 {
			return
		}
		handlerEvents = handlerEvents[:0]
		c.mu.Lock()
		for _, e := range events {
			if e.Type == transport.EventStream {
				if data := c.conn.ReadStream(e.StreamID); len(data) > 0 {
					s, ok := c.streams[e.StreamID]
					if !ok {
						s = newStream(e.StreamID, c)
						c.streams[e.StreamID] = s
					}
					s.deliver(data)
				}
			}
			handlerEvents = append(handlerEvents, e)
		}
		c.mu.Unlock()
		// The handler runs without mu held, so its Stream calls can lock it.
		if handler != nil {
			handler.Serve(c, handlerEvents)
		}
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		events := c.conn.Events(nil)
		if !c.established && c.conn.IsEstablished() {
			c.established = true
			events = append(events, transport.Event{Type: EventConnAccept})
		}
		c.mu.Unlock()
		emit(events)

		c.mu.Lock()
		for {
			n, _ := c.conn.Read(buf, time.Now())
			if n == 0 {
				break
			}
			out := append([]byte(nil), buf[:n]...)
			c.mu.Unlock()
			c.endpoint.enqueueOutbound(out, c.addr)
			c.mu.Lock()
		}
		closed := c.conn.IsClosed()
		c.mu.Unlock()
		c.endpoint.reorderWake(c)
		c.reportMetrics()

		if closed {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			if handler != nil {
				handler.Serve(c, []transport.Event{{Type: EventConnClose}})
			}
			if c.endpoint.metrics != nil && c.lastBytesInFlight != 0 {
				c.endpoint.metrics.bytesInFlight.Add(-float64(c.lastBytesInFlight))
				c.lastBytesInFlight = 0
			}
			c.endpoint.removeConn(c)
			return
		}

		select {
		case <-c.wakeCh:
		case <-ticker.C:
		case <-time.After(time.Until(c.conn.Timeout())):
		}
	}
}

// reportMetrics pushes this connection's share of the in-flight-bytes gauge
// and loss counter into the endpoint's Prometheus collectors, if enabled.
func (c *remoteConn) reportMetrics() {
	if c.endpoint.metrics == nil {
		return
	}
	cur := c.conn.BytesInFlight()
	if cur != c.lastBytesInFlight {
		c.endpoint.metrics.bytesInFlight.Add(float64(cur) - float64(c.lastBytesInFlight))
		c.lastBytesInFlight = cur
	}
	if lost := c.conn.LossCount(); lost > c.lastLossCount {
		c.endpoint.metrics.packetsLost.Add(float64(lost - c.lastLossCount))
		c.lastLossCount = lost
	}
}

// deliver feeds one inbound datagram to the transport core.
func (c *remoteConn) deliver(data []byte, now time.Time) {
	c.mu.Lock()
	c.conn.Write(data, now)
	c.mu.Unlock()
	c.wake()
}

package quic

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/goburrow/quic/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// Endpoint owns the connection table and the outbound datagram queue shared
// by every connection a Client or Server drives through one net.PacketConn.
// It is the demultiplexing layer sitting between the socket read loop and
// the per-connection goroutines in remoteconn.go.
type Endpoint struct {
	config  *Config
	handler Handler

	mu    sync.Mutex
	index *connIndex
	wake  *wakeScheduler

	socket net.PacketConn
	outCh  chan outboundDatagram

	metrics *metrics

	resetSeed [32]byte
}

type outboundDatagram struct {
	data []byte
	addr net.Addr
}

func newEndpoint(config *Config) *Endpoint {
	e := &Endpoint{
		config: config,
		index:  newConnIndex(),
		wake:   newWakeScheduler(),
		outCh:  make(chan outboundDatagram, 64),
	}
	_, _ = rand.Read(e.resetSeed[:])
	return e
}

// EnableMetrics registers Prometheus collectors for this endpoint under the
// given namespace with the default registerer; a registration error (for
// example a name already registered) is ignored. It is a no-op if already
// enabled.
func (e *Endpoint) EnableMetrics(namespace string) *metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metrics == nil {
		e.metrics = newMetrics(namespace)
		_ = e.metrics.register(prometheus.DefaultRegisterer)
	}
	return e.metrics
}

func (e *Endpoint) setHandler(h Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

func (e *Endpoint) setSocket(pc net.PacketConn) {
	e.mu.Lock()
	e.socket = pc
	e.mu.Unlock()
}

// enqueueOutbound is called by a connection's goroutine to hand a datagram
// it produced to the socket writer. It never blocks the caller on I/O: the
// actual send happens on the drain goroutine started by writeLoop.
func (e *Endpoint) enqueueOutbound(data []byte, addr net.Addr) {
	select {
	case e.outCh <- outboundDatagram{data: data, addr: addr}:
	default:
		// Outbound queue full: drop rather than block the connection
		// goroutine. The loss recovery timer will retransmit.
	}
}

// writeLoop drains the outbound queue to the socket until stopped.
func (e *Endpoint) writeLoop(stop <-chan struct{}) {
	for {
		select {
		case dg := <-e.outCh:
			e.mu.Lock()
			sock := e.socket
			e.mu.Unlock()
			if sock == nil {
				continue
			}
			_, _ = sock.WriteTo(dg.data, dg.addr)
			if e.metrics != nil {
				e.metrics.packetsSent.Inc()
			}
		case <-stop:
			return
		}
	}
}

// dispatch routes one inbound datagram read off the socket to the
// connection it belongs to: by destination connection id when the
// datagram carries one, falling back to source address otherwise (short
// headers may omit the cid, and it's always how the client's single
// outstanding connection gets found).
func (e *Endpoint) dispatch(data []byte, addr net.Addr) *remoteConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dcid, _, _ := transport.PeekHeader(data); len(dcid) > 0 {
		if c := e.index.lookupCID(dcid); c != nil {
			return c
		}
	}
	return e.index.lookupAddr(addr)
}

// newConn registers a freshly created connection under its local cnx-id and
// peer address, starts its goroutine, and returns it. Registration failure
// (a colliding cnx-id already bound to a different connection) is
// vanishingly unlikely given the random id space and is reported by
// returning false so the caller can regenerate.
func (e *Endpoint) newConn(tc *transport.Conn, addr net.Addr, scid []byte) (*remoteConn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := newRemoteConn(e, tc, addr, scid)
	if !e.index.registerCID(scid, c) || !e.index.registerAddr(addr, c) {
		e.index.remove(c)
		return nil, false
	}
	e.wake.insert(c)
	if e.metrics != nil {
		e.metrics.connsActive.Inc()
	}
	go c.run(e.handler)
	return c, true
}

// removeConn deregisters a finished connection. Called by remoteConn.run
// once its transport.Conn reaches the disconnected state.
func (e *Endpoint) removeConn(c *remoteConn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index.remove(c)
	e.wake.remove(c)
	if e.metrics != nil {
		e.metrics.connsActive.Dec()
	}
}

// reorderWake refreshes c's position in the shared wake schedule after an
// operation that may have moved its next timeout, keeping the ordering
// invariant the schedule exists to maintain.
func (e *Endpoint) reorderWake(c *remoteConn) {
	e.mu.Lock()
	e.wake.reorder(c)
	e.mu.Unlock()
}

// monitorWakes is a central backstop alongside each connection's own
// per-goroutine ticker: it sleeps until the earliest deadline scheduled
// across every connection and nudges that connection directly, so a
// coalesced or delayed per-connection timer still gets serviced promptly.
func (e *Endpoint) monitorWakes(stop <-chan struct{}) {
	for {
		e.mu.Lock()
		deadline := e.wake.earliest()
		e.mu.Unlock()

		wait := 50 * time.Millisecond
		if !deadline.IsZero() {
			if d := time.Until(deadline); d > 0 {
				wait = d
			} else {
				wait = 0
			}
		}
		select {
		case <-time.After(wait):
			e.mu.Lock()
			next := e.wake.front()
			e.mu.Unlock()
			if next != nil {
				next.wake()
			}
		case <-stop:
			return
		}
	}
}

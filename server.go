package quic

import (
	"io"
	"net"
	"time"

	"github.com/goburrow/quic/transport"
)

// Server accepts inbound QUIC connections on one UDP socket, handing each
// newly-seen client-initial datagram to a fresh server-side transport.Conn.
type Server struct {
	config   *Config
	endpoint *Endpoint
	log      logger
	stopCh   chan struct{}
}

// NewServer returns a Server ready to ListenAndServe with config.
func NewServer(config *Config) *Server {
	if config == nil {
		config = NewConfig()
	}
	config.ServerMode = true
	return &Server{
		config:   config,
		endpoint: newEndpoint(config),
		stopCh:   make(chan struct{}),
	}
}

func (s *Server) SetHandler(h Handler) {
	s.endpoint.setHandler(h)
}

func (s *Server) SetLogger(level int, w io.Writer) {
	s.log.level = logLevel(level)
	s.log.setWriter(w)
}

// EnableMetrics registers Prometheus collectors for this server.
func (s *Server) EnableMetrics(namespace string) {
	s.endpoint.EnableMetrics(namespace)
}

// ListenAndServe opens a UDP socket on addr and begins accepting
// connections. It returns once the socket is bound; the read and write
// loops continue in background goroutines until Close.
func (s *Server) ListenAndServe(addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	_ = tuneSocketBuffers(pc, 1<<20)
	s.endpoint.setSocket(pc)
	go s.endpoint.writeLoop(s.stopCh)
	go s.endpoint.monitorWakes(s.stopCh)
	go s.readLoop(pc)
	return nil
}

func (s *Server) readLoop(pc net.PacketConn) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			continue
		}
		if s.endpoint.metrics != nil {
			s.endpoint.metrics.packetsRecv.Inc()
		}
		data := append([]byte(nil), buf[:n]...)
		s.handleDatagram(data, addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr net.Addr) {
	if c := s.endpoint.dispatch(data, addr); c != nil {
		c.deliver(data, time.Now())
		return
	}
	dcid, _, isInitial := transport.PeekHeader(data)
	if !isInitial {
		return
	}
	tc, err := transport.Accept(s.config.transportConfig(), dcid, dcid)
	if err != nil {
		return
	}
	c, ok := s.endpoint.newConn(tc, addr, dcid)
	if !ok {
		return
	}
	s.log.attachLogger(c)
	c.deliver(data, time.Now())
}

// Close stops the accept and write loops and closes the socket.
func (s *Server) Close() error {
	close(s.stopCh)
	s.endpoint.mu.Lock()
	sock := s.endpoint.socket
	s.endpoint.mu.Unlock()
	if sock != nil {
		return sock.Close()
	}
	return nil
}

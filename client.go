package quic

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/goburrow/quic/transport"
)

var errConnIDCollision = errors.New("quic: connection id already registered")

// Client drives a single QUIC connection (or a handful, one per Connect
// call) over one UDP socket, the role cmd/quince's "client" subcommand
// exercises.
type Client struct {
	config   *Config
	endpoint *Endpoint
	log      logger
	stopCh   chan struct{}
}

// NewClient returns a Client ready to ListenAndServe with config.
func NewClient(config *Config) *Client {
	if config == nil {
		config = NewConfig()
	}
	return &Client{
		config:   config,
		endpoint: newEndpoint(config),
		stopCh:   make(chan struct{}),
	}
}

func (c *Client) SetHandler(h Handler) {
	c.endpoint.setHandler(h)
}

func (c *Client) SetLogger(level int, w io.Writer) {
	c.log.level = logLevel(level)
	c.log.setWriter(w)
}

// ListenAndServe opens the local UDP socket the client sends from and
// receives on. addr is typically "0.0.0.0:0" to let the kernel pick an
// ephemeral port.
func (c *Client) ListenAndServe(addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	c.endpoint.setSocket(pc)
	go c.endpoint.writeLoop(c.stopCh)
	go c.endpoint.monitorWakes(c.stopCh)
	go c.readLoop(pc)
	return nil
}

func (c *Client) readLoop(pc net.PacketConn) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			continue
		}
		data := append([]byte(nil), buf[:n]...)
		if conn := c.endpoint.dispatch(data, addr); conn != nil {
			conn.deliver(data, time.Now())
		}
	}
}

// Connect dials a new client-side connection to addr and registers it with
// the endpoint; the handshake and subsequent I/O proceed on the
// connection's own goroutine, reporting progress through the Handler set
// via SetHandler.
func (c *Client) Connect(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	tc, err := transport.Connect(c.config.transportConfig())
	if err != nil {
		return err
	}
	conn, ok := c.endpoint.newConn(tc, raddr, tc.LocalCID())
	if !ok {
		return errConnIDCollision
	}
	c.log.attachLogger(conn)
	conn.wake()
	return nil
}

// Close stops the client's read and write loops and closes its socket.
func (c *Client) Close() error {
	close(c.stopCh)
	c.endpoint.mu.Lock()
	sock := c.endpoint.socket
	c.endpoint.mu.Unlock()
	if sock != nil {
		return sock.Close()
	}
	return nil
}

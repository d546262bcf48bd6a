package quic

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/goburrow/quic/transport"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "udp" }
func (a fakeAddr) String() string  { return string(a) }

func newTestConn(t *testing.T, addr net.Addr) *remoteConn {
	t.Helper()
	cfg := transport.NewConfig()
	cfg.TLS = &tls.Config{InsecureSkipVerify: true, ServerName: "example.test"}
	cfg.TimeNow = func() time.Time { return time.Unix(1700000000, 0) }
	tc, err := transport.Connect(cfg)
	if err != nil {
		t.Fatalf("transport.Connect: %v", err)
	}
	return newRemoteConn(nil, tc, addr, tc.LocalCID())
}

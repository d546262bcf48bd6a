package quic

import (
	"crypto/tls"

	"github.com/goburrow/quic/transport"
)

// Config is the embedder-facing configuration for a Client or Server: TLS
// material, advertised transport parameters, and the congestion algorithm,
// mirroring transport.Config one level up so application code never needs
// to import the transport package just to build one.
type Config struct {
	TLS        *tls.Config
	Params     transport.Parameters
	Congestion transport.CongestionAlgorithm

	ServerMode bool
}

// NewConfig returns a Config with defaults matching transport.NewConfig.
func NewConfig() *Config {
	return &Config{
		TLS:        &tls.Config{MinVersion: tls.VersionTLS13},
		Params:     transport.DefaultParameters(),
		Congestion: transport.NewRenoCongestion(),
	}
}

func (c *Config) transportConfig() *transport.Config {
	return &transport.Config{
		TLS:        c.TLS,
		Params:     c.Params,
		Congestion: c.Congestion,
	}
}

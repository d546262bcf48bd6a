package main

import "github.com/goburrow/quic"

func newConfig() *quic.Config {
	return quic.NewConfig()
}

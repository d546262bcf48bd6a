package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goburrow/quic"
	"github.com/goburrow/quic/transport"
)

func serverCommand(args []string) error {
	cmd := flag.NewFlagSet("server", flag.ExitOnError)
	listenAddr := cmd.String("listen", "0.0.0.0:4433", "listen on the given IP:port")
	certFile := cmd.String("cert", "", "TLS certificate file")
	keyFile := cmd.String("key", "", "TLS key file")
	logLevel := cmd.Int("v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	metrics := cmd.Bool("metrics", false, "register Prometheus collectors")
	cmd.Parse(args)

	config := newConfig()
	if *certFile != "" && *keyFile != "" {
		cert, err := tlsLoadCertificate(*certFile, *keyFile)
		if err != nil {
			return err
		}
		config.TLS.Certificates = append(config.TLS.Certificates, cert)
	}
	handler := &serverHandler{}
	server := quic.NewServer(config)
	server.SetHandler(handler)
	server.SetLogger(*logLevel, os.Stdout)
	if *metrics {
		server.EnableMetrics("quince")
	}
	if err := server.ListenAndServe(*listenAddr); err != nil {
		return err
	}
	fmt.Printf("listening on %s\n", *listenAddr)
	select {}
}

type serverHandler struct{}

func (s *serverHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		log.Printf("%s connection event: %v", c.RemoteAddr(), e.Type)
		if e.Type == transport.EventStream {
			st := c.Stream(e.StreamID)
			if st == nil {
				continue
			}
			buf := make([]byte, 512)
			n, _ := st.Read(buf)
			if n > 0 {
				_, _ = st.Write(buf[:n])
				_ = st.Close()
			}
		}
	}
}

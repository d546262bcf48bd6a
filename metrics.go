package quic

import "github.com/prometheus/client_golang/prometheus"

// metrics are the optional Prometheus collectors an Endpoint updates as
// connections come and go; registering them is opt-in via
// Endpoint.EnableMetrics so embedders that don't run a /metrics handler
// don't pay for the bookkeeping.
type metrics struct {
	connsActive    prometheus.Gauge
	packetsSent    prometheus.Counter
	packetsRecv    prometheus.Counter
	packetsLost    prometheus.Counter
	bytesInFlight  prometheus.Gauge
}

func newMetrics(namespace string) *metrics {
	return &metrics{
		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Number of QUIC connections currently open.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_sent_total",
			Help: "Total QUIC packets sent.",
		}),
		packetsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_received_total",
			Help: "Total QUIC packets received.",
		}),
		packetsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_lost_total",
			Help: "Total QUIC packets classified as lost.",
		}),
		bytesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bytes_in_flight",
			Help: "Sum of bytes currently in flight across all connections.",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.connsActive, m.packetsSent, m.packetsRecv, m.packetsLost, m.bytesInFlight,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

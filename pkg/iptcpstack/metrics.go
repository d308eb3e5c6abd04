package iptcpstack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "simtcp"

type metrics struct {
	liveEndpoints  prometheus.Gauge
	bytesDelivered *prometheus.CounterVec
	bytesDropped   *prometheus.CounterVec
	established    prometheus.Counter
	refused        prometheus.Counter
	transitions    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		liveEndpoints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "live_endpoints",
			Help:      "Number of endpoints currently registered",
		}),
		bytesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_delivered_total",
			Help:      "Bytes copied into a destination receive buffer",
		}, []string{"kind"}),
		bytesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_dropped_total",
			Help:      "Bytes accepted from a sender but never delivered",
		}, []string{"kind"}),
		established: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_established_total",
			Help:      "Stream connections that completed the handshake",
		}),
		refused: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_refused_total",
			Help:      "Connect attempts rejected with ECONNREFUSED",
		}),
		transitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tcp_transitions_total",
			Help:      "TCP state changes applied to endpoints",
		}),
	}
}

func kindLabel(kind int) string {
	if kind == SOCK_STREAM {
		return "stream"
	}
	return "dgram"
}

func (m *metrics) delivered(kind, n int) {
	if n > 0 {
		m.bytesDelivered.WithLabelValues(kindLabel(kind)).Add(float64(n))
	}
}

func (m *metrics) dropped(kind, n int) {
	if n > 0 {
		m.bytesDropped.WithLabelValues(kindLabel(kind)).Add(float64(n))
	}
}

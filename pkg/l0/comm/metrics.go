package comm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts link activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesReceived  prometheus.Counter
	FramesSent      prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	RawBytes        prometheus.Counter
	Reconnects      prometheus.Counter
	ConnectAttempts prometheus.Counter
	Connected       prometheus.Gauge
}

// Drop reasons.
const (
	DropCorrupt         = "corrupt"
	DropUnknownEndpoint = "unknown_endpoint"
	DropWriteFailed     = "write_failed"
)

// NewMetrics creates and registers Metrics with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Frames decoded from the link",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames written to the link",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by reason",
		}, []string{"reason"}),
		RawBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "raw_bytes_total",
			Help:      "Bytes received outside of frames",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "reconnects_total",
			Help:      "Successful link (re)connections",
		}),
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Discovery and open attempts",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connected",
			Help:      "1 if the link is connected",
		}),
	}
}

func (m *Metrics) received(n int) {
	if m != nil && n > 0 {
		m.FramesReceived.Add(float64(n))
	}
}

func (m *Metrics) sent(n int) {
	if m != nil && n > 0 {
		m.FramesSent.Add(float64(n))
	}
}

func (m *Metrics) dropped(reason string, n int) {
	if m != nil && n > 0 {
		m.FramesDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) raw(n int) {
	if m != nil && n > 0 {
		m.RawBytes.Add(float64(n))
	}
}

func (m *Metrics) attempt() {
	if m != nil {
		m.ConnectAttempts.Inc()
	}
}

func (m *Metrics) connected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Reconnects.Inc()
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// Package metrics exposes Prometheus collectors for the relay.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation (tests, the simulator).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name (default "relay").
	Namespace string
	// Registry receives the collectors (default prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

type Metrics struct {
	framesReceived     *prometheus.CounterVec
	decodeErrors       *prometheus.CounterVec
	framesSent         *prometheus.CounterVec
	sendFailures       prometheus.Counter
	transfersCompleted prometheus.Counter
	orphanPhotos       prometheus.Counter
	connections        *prometheus.GaugeVec
	sessionPoints      prometheus.Gauge
	sessionPhotos      prometheus.Gauge
}

func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "relay"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)
	ns := cfg.Namespace

	return &Metrics{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded, by frame type",
		}, []string{"type"}),

		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "decode_errors_total",
			Help:      "Inbound frames rejected at decoding, by error kind",
		}, []string{"kind"}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_sent_total",
			Help:      "Frames accepted by a connection send queue, by frame type",
		}, []string{"type"}),

		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "send_failures_total",
			Help:      "Frames dropped because the connection was closed or too slow",
		}),

		transfersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transfers_completed_total",
			Help:      "Streamed transfers closed by an end frame",
		}),

		orphanPhotos: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "orphan_photos_total",
			Help:      "Photos referencing a point that was never accepted",
		}),

		connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "connections",
			Help:      "Open relay connections, by role",
		}, []string{"role"}),

		sessionPoints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "session_points",
			Help:      "Points held by the in-flight transfer",
		}),

		sessionPhotos: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "session_photos",
			Help:      "Photos held by the in-flight transfer",
		}),
	}
}

func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(frameType).Inc()
}

func (m *Metrics) DecodeError(kind string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(kind).Inc()
}

// FramesSent records n successful deliveries of one frame type.
func (m *Metrics) FramesSent(frameType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesSent.WithLabelValues(frameType).Add(float64(n))
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) TransferCompleted() {
	if m == nil {
		return
	}
	m.transfersCompleted.Inc()
}

func (m *Metrics) OrphanPhoto() {
	if m == nil {
		return
	}
	m.orphanPhotos.Inc()
}

// SetConnections replaces the per-role connection gauges.
func (m *Metrics) SetConnections(byRole map[string]int) {
	if m == nil {
		return
	}
	for role, n := range byRole {
		m.connections.WithLabelValues(role).Set(float64(n))
	}
}

func (m *Metrics) SetSession(points, photos int) {
	if m == nil {
		return
	}
	m.sessionPoints.Set(float64(points))
	m.sessionPhotos.Set(float64(photos))
}

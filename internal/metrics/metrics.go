// Package metrics exposes Prometheus instruments for the impact pipeline.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "impact"

// Metrics groups the pipeline counters and gauges
type Metrics struct {
	framesDecoded   prometheus.Counter
	framesDropped   *prometheus.CounterVec
	chunksDropped   prometheus.Counter
	anomalies       *prometheus.CounterVec
	calibrations    *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	persistFailures prometheus.Counter
	transportErrors *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// New registers all instruments with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		framesDecoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Telemetry frames decoded into samples.",
		}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Telemetry frames discarded by the decoder.",
		}, []string{"reason"}),
		chunksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Transport chunks dropped on a full session queue.",
		}),
		anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "High-acceleration events detected.",
		}, []string{"direction"}),
		calibrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Completed calibration windows by result.",
		}, []string{"result"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events not persisted because the write queue was full.",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Event inserts that failed in the store.",
		}),
		transportErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Transport operations that failed.",
		}, []string{"op"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Devices currently streaming.",
		}),
	}
}

func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.framesDecoded.Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChunkDropped() {
	if m == nil {
		return
	}
	m.chunksDropped.Inc()
}

func (m *Metrics) AnomalyDetected(direction string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(direction).Inc()
}

func (m *Metrics) Calibration(result string) {
	if m == nil {
		return
	}
	m.calibrations.WithLabelValues(result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) TransportError(op string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(op).Inc()
}

// SetActiveSessions records the number of live sessions
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

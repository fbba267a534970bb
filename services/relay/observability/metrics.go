// Package observability provides Prometheus metrics for the relay service.
//
// Metrics cover request outcomes, emitted frames by type, active streams,
// stream duration, tool-call fallbacks, and errors by code. They are
// exposed on /metrics and are safe for concurrent use via Prometheus's
// internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "xgaming"
	relaySubsystem   = "relay"
)

// Error codes used as the error_code label on ErrorsTotal.
const (
	ErrorCodeValidation        = "validation"
	ErrorCodeUpstream          = "upstream_unavailable"
	ErrorCodeRunFailed         = "run_failed"
	ErrorCodeStreamProtocol    = "stream_protocol"
	ErrorCodeClientDisconnect  = "client_disconnect"
	ErrorCodeToolSideCall      = "tool_side_call"
	ErrorCodeImageFetch        = "image_fetch"
	ErrorCodeStreamUnsupported = "stream_unsupported"
)

// RelayMetrics holds the Prometheus collectors for the chat relay.
type RelayMetrics struct {
	// RequestsTotal counts chat requests by final status (success, error).
	RequestsTotal *prometheus.CounterVec

	// FramesTotal counts downstream frames by type (text, images, done,
	// error). A downstream duplication bug would show up here before
	// anyone adds a dedup layer.
	FramesTotal *prometheus.CounterVec

	// ActiveStreams tracks currently open relay streams.
	ActiveStreams prometheus.Gauge

	// StreamDurationSeconds measures total stream duration by status.
	StreamDurationSeconds *prometheus.HistogramVec

	// ToolFallbacksTotal counts get_metrics side calls that fell back to
	// synthetic data.
	ToolFallbacksTotal prometheus.Counter

	// ErrorsTotal counts errors by error_code.
	ErrorsTotal *prometheus.CounterVec

	// SessionsTracked reports the size of the in-memory session registry,
	// which is unbounded by design.
	SessionsTracked prometheus.Gauge
}

// DefaultMetrics is the singleton instance, set by InitMetrics. Callers
// nil-check it so tests can run without registering collectors.
var DefaultMetrics *RelayMetrics

// InitMetrics registers all collectors on the default registry. Call once
// at startup; calling twice panics on duplicate registration.
func InitMetrics() *RelayMetrics {
	DefaultMetrics = &RelayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "requests_total",
				Help:      "Total chat relay requests by status",
			},
			[]string{"status"},
		),
		FramesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "frames_total",
				Help:      "Total downstream frames emitted by type",
			},
			[]string{"type"},
		),
		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "active_streams",
				Help:      "Currently open relay streams",
			},
		),
		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration by status",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		ToolFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "tool_fallbacks_total",
				Help:      "get_metrics side calls answered with synthetic fallback data",
			},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "errors_total",
				Help:      "Errors by error_code",
			},
			[]string{"error_code"},
		),
		SessionsTracked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "sessions_tracked",
				Help:      "Entries in the in-memory session registry",
			},
		),
	}
	return DefaultMetrics
}

func (m *RelayMetrics) RecordRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
}

func (m *RelayMetrics) RecordFrame(frameType string) {
	m.FramesTotal.WithLabelValues(frameType).Inc()
}

func (m *RelayMetrics) StreamStarted() {
	m.ActiveStreams.Inc()
}

func (m *RelayMetrics) StreamEnded() {
	m.ActiveStreams.Dec()
}

func (m *RelayMetrics) RecordStreamDuration(seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(status).Observe(seconds)
}

func (m *RelayMetrics) RecordToolFallback() {
	m.ToolFallbacksTotal.Inc()
}

func (m *RelayMetrics) RecordError(code string) {
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

func (m *RelayMetrics) SetSessionCount(n int) {
	m.SessionsTracked.Set(float64(n))
}

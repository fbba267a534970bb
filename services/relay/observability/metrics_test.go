package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a RelayMetrics on an isolated registry so tests do
// not conflict with the global one.
func newTestMetrics(t *testing.T) *RelayMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	m := &RelayMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "requests_total",
				Help:      "Total chat relay requests by status",
			},
			[]string{"status"},
		),
		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "frames_total",
				Help:      "Total downstream frames emitted by type",
			},
			[]string{"type"},
		),
		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "active_streams",
				Help:      "Currently open relay streams",
			},
		),
		StreamDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration by status",
				Buckets:   []float64{0.5, 1, 5},
			},
			[]string{"status"},
		),
		ToolFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "tool_fallbacks_total",
				Help:      "get_metrics side calls answered with synthetic fallback data",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "errors_total",
				Help:      "Errors by error_code",
			},
			[]string{"error_code"},
		),
		SessionsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "sessions_tracked",
				Help:      "Entries in the in-memory session registry",
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.FramesTotal, m.ActiveStreams,
		m.StreamDurationSeconds, m.ToolFallbacksTotal, m.ErrorsTotal, m.SessionsTracked)
	return m
}

func TestRelayMetrics_RecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(true)
	m.RecordRequest(true)
	m.RecordRequest(false)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error count mismatch: %v", got)
	}
}

func TestRelayMetrics_RecordFrame(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFrame("text")
	m.RecordFrame("text")
	m.RecordFrame("done")

	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("text")); got != 2 {
		t.Errorf("text frame count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("done")); got != 1 {
		t.Errorf("done frame count mismatch: %v", got)
	}
}

func TestRelayMetrics_StreamLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.StreamStarted()
	m.StreamStarted()
	if got := testutil.ToFloat64(m.ActiveStreams); got != 2 {
		t.Errorf("active streams mismatch: %v", got)
	}
	m.StreamEnded()
	if got := testutil.ToFloat64(m.ActiveStreams); got != 1 {
		t.Errorf("active streams mismatch after end: %v", got)
	}
}

func TestRelayMetrics_ErrorsAndFallbacks(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordError(ErrorCodeRunFailed)
	m.RecordError(ErrorCodeRunFailed)
	m.RecordToolFallback()
	m.SetSessionCount(7)

	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(ErrorCodeRunFailed)); got != 2 {
		t.Errorf("error count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.ToolFallbacksTotal); got != 1 {
		t.Errorf("fallback count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsTracked); got != 7 {
		t.Errorf("sessions gauge mismatch: %v", got)
	}
}

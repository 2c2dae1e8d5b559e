package matching

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/campusconnect/internal/retry"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for remote generation.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	FallbacksTotal  *prometheus.CounterVec
}

// NewMetrics registers the collectors with the default registry once and
// returns the shared instance.
//
//   - campusconnect_genai_requests_total{operation,outcome}
//   - campusconnect_genai_retries_total{operation,class}
//   - campusconnect_genai_request_duration_seconds{operation}
//   - campusconnect_fallbacks_total{operation,reason}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return globalMetrics
}

// NewMetricsWith registers fresh collectors on reg. Tests use a private
// registry so they can read values back.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_genai_requests_total",
				Help: "Remote generation calls by final outcome",
			},
			[]string{"operation", "outcome"}, // success, error, quota_exhausted, unavailable
		),
		RetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_genai_retries_total",
				Help: "Backoff retries by failure class",
			},
			[]string{"operation", "class"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusconnect_genai_request_duration_seconds",
				Help:    "Wall time of a remote generation call including backoff",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		FallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_fallbacks_total",
				Help: "Local results served in place of remote ones",
			},
			[]string{"operation", "reason"},
		),
	}
}

func (m *Metrics) observeRequest(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, outcome).Inc()
	if elapsed > 0 {
		m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeRetry(op string, class retry.Class) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(op, class.String()).Inc()
}

func (m *Metrics) observeFallback(op, reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(op, reason).Inc()
}

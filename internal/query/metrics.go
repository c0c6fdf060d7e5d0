package query

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/filpulse/internal/apperror"
)

// Metrics counts and times executed queries. A nil *Metrics records nothing.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the query collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filpulse",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total number of dataset queries executed.",
		}, []string{"endpoint", "mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "filpulse",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Dataset query latency in seconds, count and page together.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "mode"}),
	}
	if reg != nil {
		reg.MustRegister(m.total, m.duration)
	}
	return m
}

func (m *Metrics) observe(endpoint, mode string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(endpoint, mode, outcome(err)).Inc()
	m.duration.WithLabelValues(endpoint, mode).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}

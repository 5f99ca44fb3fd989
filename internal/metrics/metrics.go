// Package metrics provides Prometheus metrics for face login and enrollment.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Score buckets cover the full correlation range.
var scoreBuckets = []float64{-0.5, 0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1}

// Manager owns the face recognition metrics. A nil *Manager records nothing.
type Manager struct {
	namespace       string
	durationBuckets []float64
	registry        *prometheus.Registry

	matchAttempts     *prometheus.CounterVec
	matchDuration     prometheus.Histogram
	matchScore        prometheus.Histogram
	skippedReferences prometheus.Counter
	enrollments       *prometheus.CounterVec
	identities        prometheus.Gauge
}

// NewManager creates a metrics manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "facelog",
		durationBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.matchAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "match",
		Name:      "attempts_total",
		Help:      "Face login attempts by outcome reason",
	}, []string{"reason"})

	m.matchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "match",
		Name:      "duration_seconds",
		Help:      "Time spent deciding a face login attempt",
		Buckets:   m.durationBuckets,
	})

	m.matchScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "match",
		Name:      "best_score",
		Help:      "Best correlation score of attempts that compared at least one reference",
		Buckets:   scoreBuckets,
	})

	m.skippedReferences = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "match",
		Name:      "skipped_references_total",
		Help:      "References skipped because their signature could not be obtained or scored",
	})

	m.enrollments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "enroll",
		Name:      "total",
		Help:      "Enrollment attempts by result",
	}, []string{"result"})

	m.identities = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "enrolled_identities",
		Help:      "Number of enrolled identities",
	})

	return m
}

// RecordMatch records one decided login attempt. score is nil when nothing was compared.
func (m *Manager) RecordMatch(reason string, elapsed time.Duration, score *float64, skipped int) {
	if m == nil {
		return
	}
	m.matchAttempts.WithLabelValues(reason).Inc()
	m.matchDuration.Observe(elapsed.Seconds())
	if score != nil {
		m.matchScore.Observe(*score)
	}
	if skipped > 0 {
		m.skippedReferences.Add(float64(skipped))
	}
}

// RecordEnrollment counts an enrollment attempt.
func (m *Manager) RecordEnrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// SetIdentities sets the enrolled identities gauge.
func (m *Manager) SetIdentities(n int) {
	if m == nil {
		return
	}
	m.identities.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

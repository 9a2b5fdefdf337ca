// Package metrics provides Prometheus metrics for the reputation engine.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	pointsAdded      prometheus.Counter
	pointsAmount     prometheus.Counter
	grants           *prometheus.CounterVec
	evaluatorRuns    *prometheus.CounterVec
	evaluatorLatency prometheus.Histogram
	rankingRequests  prometheus.Counter
	rankingLatency   prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	sideEffectErrors *prometheus.CounterVec
}

// New registers all collectors on a fresh registry under namespace
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,
		pointsAdded: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "point_updates_total",
			Help:      "Total number of committed ledger updates",
		}),
		pointsAmount: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "points_granted_total",
			Help:      "Sum of positive point amounts committed to the ledger",
		}),
		grants: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badges",
			Name:      "grants_total",
			Help:      "Badge grant attempts by badge and outcome",
		}, []string{"badge", "outcome"}),
		evaluatorRuns: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "runs_total",
			Help:      "Badge rule evaluation runs by trigger",
		}, []string{"trigger"}),
		evaluatorLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "run_duration_seconds",
			Help:      "Duration of badge rule evaluation runs",
			Buckets:   prometheus.DefBuckets,
		}),
		rankingRequests: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "requests_total",
			Help:      "Tutor ranking computations",
		}),
		rankingLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "duration_seconds",
			Help:      "Duration of tutor ranking computations",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		sideEffectErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed, by kind",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PointsAdded records a committed ledger update
func (m *Metrics) PointsAdded(amount int64) {
	if m == nil {
		return
	}
	m.pointsAdded.Inc()
	if amount > 0 {
		m.pointsAmount.Add(float64(amount))
	}
}

// GrantAttempt records the outcome of a grant for badge
func (m *Metrics) GrantAttempt(badge, outcome string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(badge, outcome).Inc()
}

// EvaluatorRun records an evaluation run
func (m *Metrics) EvaluatorRun(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluatorRuns.WithLabelValues(trigger).Inc()
	m.evaluatorLatency.Observe(d.Seconds())
}

// RankingComputed records a ranking computation
func (m *Metrics) RankingComputed(d time.Duration) {
	if m == nil {
		return
	}
	m.rankingRequests.Inc()
	m.rankingLatency.Observe(d.Seconds())
}

// HTTPRequest records a served request
func (m *Metrics) HTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// SideEffectFailed records a failed best-effort side effect (audit, notification, mirror)
func (m *Metrics) SideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.sideEffectErrors.WithLabelValues(kind).Inc()
}

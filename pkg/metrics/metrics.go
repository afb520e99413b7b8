// Package metrics defines the Prometheus collectors pagecraft exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector. Build it with New; a nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Operations counts engine operations by operation and result.
	Operations *prometheus.CounterVec

	// Duration tracks engine operation latency.
	Duration *prometheus.HistogramVec

	// NodesCloned counts records written by subtree duplication.
	NodesCloned prometheus.Counter

	// TemplatesRenumbered counts template rank rewrites.
	TemplatesRenumbered prometheus.Counter

	// Requests counts HTTP requests by route and status code.
	Requests *prometheus.CounterVec

	// Subscribers is the number of connected change feed clients.
	Subscribers prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecraft_operations_total",
			Help: "Tree and template operations by operation and result",
		}, []string{"operation", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagecraft_operation_duration_seconds",
			Help:    "Operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"operation"}),
		NodesCloned: f.NewCounter(prometheus.CounterOpts{
			Name: "pagecraft_nodes_cloned_total",
			Help: "Records written by subtree duplication",
		}),
		TemplatesRenumbered: f.NewCounter(prometheus.CounterOpts{
			Name: "pagecraft_templates_renumbered_total",
			Help: "Template rank rewrites performed by the ordering engine",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecraft_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "pagecraft_event_subscribers",
			Help: "Connected change feed clients",
		}),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Cloned adds n to the clone counter.
func (m *Metrics) Cloned(n int) {
	if m == nil {
		return
	}
	m.NodesCloned.Add(float64(n))
}

// Renumbered adds n to the renumber counter.
func (m *Metrics) Renumbered(n int) {
	if m == nil {
		return
	}
	m.TemplatesRenumbered.Add(float64(n))
}

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/f07-workflow/internal/application/port"
)

// Recorder exposes workflow metrics on its own registry
type Recorder struct {
	registry     *prometheus.Registry
	actions      *prometheus.CounterVec
	pending      prometheus.Histogram
	httpRequests *prometheus.CounterVec
}

// NewRecorder creates a recorder with the workflow collectors and the Go runtime collectors
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "f07"
	}
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "actions_total",
			Help:      "Workflow actions attempted, by action code and outcome.",
		}, []string{"action", "outcome"}),
		pending: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pending_tasks_resolved",
			Help:      "Number of pending tasks returned per queue lookup.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		r.actions,
		r.pending,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveAction counts one action attempt
func (r *Recorder) ObserveAction(action, outcome string) {
	if action == "" {
		action = "UNKNOWN"
	}
	r.actions.WithLabelValues(action, outcome).Inc()
}

// ObservePending records the size of one resolved pending queue
func (r *Recorder) ObservePending(count int) {
	r.pending.Observe(float64(count))
}

// ObserveHTTP counts one served HTTP request
func (r *Recorder) ObserveHTTP(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ port.MetricsRecorder = (*Recorder)(nil)

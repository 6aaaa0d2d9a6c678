// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can create independent instances.
type Recorder struct {
	registry        *prometheus.Registry
	bomGenerated    prometheus.Counter
	unknownLines    *prometheus.CounterVec
	cycles          prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, including the Go and
// process collectors.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		bomGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "platecost",
			Name:      "bom_generated_total",
			Help:      "Bills of materials generated.",
		}),
		unknownLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "platecost",
			Name:      "cost_lines_unknown_total",
			Help:      "Cost lines that could not be priced, by source.",
		}, []string{"source"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "platecost",
			Name:      "cost_cycles_total",
			Help:      "Cost computations aborted by a recipe cycle.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "platecost",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.bomGenerated,
		r.unknownLines,
		r.cycles,
		r.requestDuration,
	)
	return r
}

// BOMGenerated counts a persisted bill of materials.
func (r *Recorder) BOMGenerated() {
	if r == nil {
		return
	}
	r.bomGenerated.Inc()
}

// UnknownLines adds n unpriced lines for source ("recipe", "bom", ...).
func (r *Recorder) UnknownLines(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.unknownLines.WithLabelValues(source).Add(float64(n))
}

// Cycle counts a computation rejected because of a recipe cycle.
func (r *Recorder) Cycle() {
	if r == nil {
		return
	}
	r.cycles.Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (r *Recorder) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

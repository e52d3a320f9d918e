// Package metrics exposes Prometheus counters for the gateway. The decoder
// and aggregator deliberately skip malformed records instead of failing the
// request; these counters are the observability channel that keeps those
// skips from being silent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "batchgate"

// Recorder registers and owns all gateway metrics.
type Recorder struct {
	registry *prometheus.Registry

	recordsParsed  prometheus.Counter
	recordsDropped prometheus.Counter
	upstreamErrors prometheus.Counter
	requests       *prometheus.CounterVec
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	r := &Recorder{
		registry: registry,
		recordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_records_parsed_total",
			Help:      "SSE data records successfully parsed and aggregated.",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_records_dropped_total",
			Help:      "SSE data records skipped because they were malformed or had no recognizable delta.",
		}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream requests that failed at the transport level.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed inbound requests by status code.",
		}, []string{"code"}),
	}

	registry.MustRegister(r.recordsParsed, r.recordsDropped, r.upstreamErrors, r.requests)
	return r
}

// RecordParsed counts one successfully aggregated SSE record.
func (r *Recorder) RecordParsed() { r.recordsParsed.Inc() }

// RecordDropped counts one skipped SSE record.
func (r *Recorder) RecordDropped() { r.recordsDropped.Inc() }

// UpstreamError counts one failed upstream call.
func (r *Recorder) UpstreamError() { r.upstreamErrors.Inc() }

// Request counts one completed inbound request with the given status code.
func (r *Recorder) Request(code string) { r.requests.WithLabelValues(code).Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus collectors for the ethfacade JSON-RPC
// service: request counts and latency per method, error counts per error
// class and transaction pool submission outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes recorded by ObserveSubmission.
const (
	OutcomeAccepted = "accepted"
	OutcomeDecode   = "decode_failed"
	OutcomeRejected = "rejected"
	OutcomeAborted  = "aborted"
)

// Metrics bundles the facade's collectors around a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	submissions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them, together
// with the Go runtime and process collectors, in a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "JSON-RPC requests by method.",
			},
			[]string{"method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "JSON-RPC error responses by method and error class.",
			},
			[]string{"method", "kind"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_submissions_total",
				Help:      "Raw transaction submissions by outcome.",
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "JSON-RPC request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(
		m.requests, m.errors, m.submissions, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one request for method and records its latency.
func (m *Metrics) ObserveRequest(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method).Inc()
	m.latency.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveError counts one error response of the given class.
func (m *Metrics) ObserveError(method, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, kind).Inc()
}

// ObserveSubmission counts one raw transaction submission outcome.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// Package metrics defines the Prometheus collectors of the deck service and
// exposes a scrape handler.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deckgen/internal/domain"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	JobTransitions      *prometheus.CounterVec
	JobsInFlight        prometheus.Gauge
	StageDuration       *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors along with the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckgen_job_transitions_total",
				Help: "Committed job state changes by target status.",
			},
			[]string{"status"},
		),
		JobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "deckgen_jobs_in_flight",
				Help: "Jobs created by this process that have not reached done or error.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deckgen_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds by stage and outcome.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage", "outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckgen_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deckgen_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobTransitions,
		m.JobsInFlight,
		m.StageDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobChanged counts a committed job change.
func (m *Metrics) JobChanged(_ context.Context, prev domain.JobStatus, job domain.Job) {
	m.JobTransitions.WithLabelValues(string(job.Status)).Inc()
	switch {
	case prev == "":
		m.JobsInFlight.Inc()
	case job.Status.Terminal() && !prev.Terminal():
		m.JobsInFlight.Dec()
	}
}

// StageFinished records how long a pipeline stage took.
func (m *Metrics) StageFinished(stage domain.JobStatus, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StageDuration.WithLabelValues(string(stage), outcome).Observe(took.Seconds())
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Package metrics exposes the Prometheus collectors of the announce
// binaries. Package-level helpers are no-ops until SetGlobal is called, so
// library code can record unconditionally.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for announce
type Metrics struct {
	// Dispatch
	DispatchSendsTotal      *prometheus.CounterVec
	DispatchBatchesTotal    prometheus.Counter
	DispatchRunsTotal       *prometheus.CounterVec
	DispatchDurationSeconds prometheus.Histogram
	QueueDepth              prometheus.Gauge

	// Tracking and ingestion
	TrackingEventsTotal *prometheus.CounterVec
	WebhookEventsTotal  *prometheus.CounterVec
	RateLimitWaitsTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DispatchSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_dispatch_sends_total",
				Help: "Recipient sends attempted by dispatch, by provider and result",
			},
			[]string{"provider", "result"},
		),
		DispatchBatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "announce_dispatch_batches_total",
				Help: "Dispatch batches completed",
			},
		),
		DispatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_dispatch_runs_total",
				Help: "Dispatch runs by outcome",
			},
			[]string{"outcome"},
		),
		DispatchDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "announce_dispatch_duration_seconds",
				Help:    "Wall time of a full campaign dispatch",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "announce_dispatch_queue_depth",
				Help: "Dispatch jobs waiting in the queue",
			},
		),
		TrackingEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_tracking_events_total",
				Help: "Tracking events recorded, by type",
			},
			[]string{"type"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_webhook_events_total",
				Help: "Provider webhook events, by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitWaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_ratelimit_waits_total",
				Help: "Sends delayed by the provider rate limiter",
			},
			[]string{"provider"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "announce_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.DispatchSendsTotal,
		m.DispatchBatchesTotal,
		m.DispatchRunsTotal,
		m.DispatchDurationSeconds,
		m.QueueDepth,
		m.TrackingEventsTotal,
		m.WebhookEventsTotal,
		m.RateLimitWaitsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncDispatchSend counts one recipient send. result is "sent" or "failed".
func IncDispatchSend(provider, result string) {
	if m := Global(); m != nil {
		m.DispatchSendsTotal.WithLabelValues(provider, result).Inc()
	}
}

// IncDispatchBatch counts one completed batch.
func IncDispatchBatch() {
	if m := Global(); m != nil {
		m.DispatchBatchesTotal.Inc()
	}
}

// ObserveDispatch records a finished dispatch run.
func ObserveDispatch(outcome string, seconds float64) {
	if m := Global(); m != nil {
		m.DispatchRunsTotal.WithLabelValues(outcome).Inc()
		m.DispatchDurationSeconds.Observe(seconds)
	}
}

// SetQueueDepth sets the pending job gauge.
func SetQueueDepth(n int64) {
	if m := Global(); m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// IncTrackingEvent counts a recorded tracking event.
func IncTrackingEvent(eventType string) {
	if m := Global(); m != nil {
		m.TrackingEventsTotal.WithLabelValues(eventType).Inc()
	}
}

// IncWebhookEvent counts a webhook event. outcome is one of "recorded",
// "ignored", "skipped", "malformed", "unauthorized" or "error".
func IncWebhookEvent(outcome string) {
	if m := Global(); m != nil {
		m.WebhookEventsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRateLimitWait counts a send delayed by the limiter.
func IncRateLimitWait(provider string) {
	if m := Global(); m != nil {
		m.RateLimitWaitsTotal.WithLabelValues(provider).Inc()
	}
}

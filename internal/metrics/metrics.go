// Package metrics exposes Prometheus instrumentation for the poller and API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamgate"

// Metrics holds every collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	PollTicks         *prometheus.CounterVec
	PollDuration      prometheus.Histogram
	RowsFetched       prometheus.Counter
	EventsSurfaced    *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
	ProcessedKeys     prometheus.Gauge
	FeedSize          prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poll ticks by result (ok, error).",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Time spent fetching and filtering one tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "rows_fetched_total",
			Help:      "Rows returned by the source endpoint.",
		}),
		EventsSurfaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "events_surfaced_total",
			Help:      "Rows surfaced as new events, by source table.",
		}, []string{"source"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "duplicates_skipped_total",
			Help:      "Rows dropped because their key was already processed.",
		}),
		ProcessedKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "processed_keys",
			Help:      "Size of the processed-key set.",
		}),
		FeedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events",
			Help:      "Events currently in the visible list.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result (granted, denied).",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PollTicks,
		m.PollDuration,
		m.RowsFetched,
		m.EventsSurfaced,
		m.DuplicatesSkipped,
		m.ProcessedKeys,
		m.FeedSize,
		m.HTTPRequests,
		m.LoginAttempts,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

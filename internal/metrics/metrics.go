// Package metrics holds the prometheus collectors shared by the request
// cache, the transport and the controllers.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cidash"

// Cache lookup results.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupFailed = "failed"
)

// Fetch outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
)

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Request cache lookups by result.",
		},
		[]string{"result"},
	)
	cacheShared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "shared_loads_total",
			Help:      "Fetches answered by a load shared with another caller.",
		},
	)
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "fetches_total",
			Help:      "Backend fetches by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "fetch_duration_seconds",
			Help:      "Backend fetch latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	staleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "stale_responses_total",
			Help:      "Responses dropped because a newer request superseded them.",
		},
	)
)

var registerMetrics sync.Once

// Register adds all collectors to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(cacheLookups, cacheShared, fetches, fetchDuration, staleResponses)
	})
}

// RecordCacheLookup counts a request cache lookup.
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordSharedLoad counts a fetch that shared an in-flight load.
func RecordSharedLoad() {
	cacheShared.Inc()
}

// RecordFetch counts a backend fetch and observes its latency.
func RecordFetch(outcome string, d time.Duration) {
	fetches.WithLabelValues(outcome).Inc()
	fetchDuration.Observe(d.Seconds())
}

// RecordStaleResponse counts a dropped out-of-date response.
func RecordStaleResponse() {
	staleResponses.Inc()
}

// Handler serves the gatherer's metrics on /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page outcomes.
const (
	OutcomeFull     = "full"
	OutcomeShort    = "short"
	OutcomeEmpty    = "empty"
	OutcomeFallback = "fallback"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Page Metrics
	PagesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_pages_served_total",
			Help: "Total number of recommendation pages served by outcome",
		},
		[]string{"outcome"},
	)

	PageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atelier_page_duration_seconds",
			Help:    "Time spent building a recommendation page",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	PageItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atelier_page_items",
			Help:    "Number of items per recommendation page",
			Buckets: []float64{0, 5, 10, 20, 30, 40, 60, 80},
		},
	)

	// Channel Metrics
	ChannelProduceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_channel_produce_duration_seconds",
			Help:    "Time spent producing candidates per channel",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"channel"},
	)

	ChannelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_channel_errors_total",
			Help: "Total number of failed or rejected channel produce calls",
		},
		[]string{"channel"},
	)

	ChannelCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_channel_candidates",
			Help:    "Number of candidates produced per channel call",
			Buckets: []float64{0, 10, 40, 100, 200, 400, 800},
		},
		[]string{"channel"},
	)

	// Session Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atelier_sessions_active",
			Help: "Number of user sessions held in memory",
		},
	)

	SessionEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atelier_session_evictions_total",
			Help: "Total number of sessions evicted from the in-memory registry",
		},
	)

	InteractionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atelier_interactions_recorded_total",
			Help: "Total number of user interactions applied to sessions",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_events_published_total",
			Help: "Total number of events published",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_events_consumed_total",
			Help: "Total number of events consumed",
		},
		[]string{"topic", "result"}, // result: "applied", "invalid", "failed"
	)

	// Outbox Metrics
	WALEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_wal_entries_total",
			Help: "Interaction outbox entries by outcome",
		},
		[]string{"outcome"}, // "written", "confirmed", "retried", "dropped"
	)

	WALPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atelier_wal_pending_entries",
			Help: "Outbox entries awaiting publish after the last retry pass",
		},
	)

	// Embedding Metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_embedding_requests_total",
			Help: "Total number of outbound embedding requests",
		},
		[]string{"result"},
	)

	EmbeddingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_embedding_cache_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Snapshot Metrics
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atelier_snapshot_duration_seconds",
			Help:    "Time spent persisting session snapshots",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atelier_snapshot_sessions",
			Help: "Number of sessions written by the last snapshot",
		},
	)

	// Catalog Metrics
	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atelier_catalog_items",
			Help: "Number of items in the loaded catalog",
		},
	)

	CatalogLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_catalog_load_duration_seconds",
			Help:    "Time spent loading the catalog by source format",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)
)

// RecordAPIRequest records an API request with its status and latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// PageOutcome classifies a page for the pages-served counter.
func PageOutcome(short, fallback bool, items int) string {
	switch {
	case fallback:
		return OutcomeFallback
	case items == 0:
		return OutcomeEmpty
	case short:
		return OutcomeShort
	default:
		return OutcomeFull
	}
}

// RecordPage records a served page.
func RecordPage(outcome string, duration time.Duration, items int) {
	PagesServed.WithLabelValues(outcome).Inc()
	PageDuration.Observe(duration.Seconds())
	PageItems.Observe(float64(items))
}

// RecordChannelProduce records one channel produce call.
func RecordChannelProduce(channel string, duration time.Duration, candidates int, err error) {
	ChannelProduceDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if err != nil {
		ChannelErrors.WithLabelValues(channel).Inc()
		return
	}
	ChannelCandidates.WithLabelValues(channel).Observe(float64(candidates))
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	if to == "closed" {
		CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	}
}

// RecordBreakerResult records the outcome of a call through a circuit breaker.
func RecordBreakerResult(name, result string, consecutiveFailures uint32) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
	CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(consecutiveFailures))
}

// RecordEventPublished records a publish attempt.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordEventConsumed records the handling result of a consumed event.
func RecordEventConsumed(topic, result string) {
	EventsConsumed.WithLabelValues(topic, result).Inc()
}

// RecordEmbeddingRequest records an outbound embedding call.
func RecordEmbeddingRequest(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EmbeddingRequests.WithLabelValues(result).Inc()
}

// RecordEmbeddingCache records an embedding cache lookup.
func RecordEmbeddingCache(hit bool) {
	if hit {
		EmbeddingCache.WithLabelValues("hit").Inc()
	} else {
		EmbeddingCache.WithLabelValues("miss").Inc()
	}
}

// RecordSnapshot records a completed session snapshot.
func RecordSnapshot(duration time.Duration, sessions int) {
	SnapshotDuration.Observe(duration.Seconds())
	SnapshotSessions.Set(float64(sessions))
}

// RecordCatalogLoad records a catalog load.
func RecordCatalogLoad(format string, duration time.Duration, items int) {
	CatalogLoadDuration.WithLabelValues(format).Observe(duration.Seconds())
	CatalogItems.Set(float64(items))
}

// RecordWALEntry records an outbox entry transition.
func RecordWALEntry(outcome string) {
	WALEntries.WithLabelValues(outcome).Inc()
}

// SetWALPending sets the pending outbox gauge.
func SetWALPending(n int) {
	WALPending.Set(float64(n))
}

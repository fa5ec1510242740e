// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and are
exposed by the API server at /metrics in Prometheus text format:

	curl http://localhost:8089/metrics

# Available Metrics

Recommendation pages:
  - atelier_pages_served_total{outcome}: pages by outcome (full, short, empty, fallback)
  - atelier_page_duration_seconds: wall time spent building a page
  - atelier_page_items: number of items per page

Channels:
  - atelier_channel_produce_duration_seconds{channel}
  - atelier_channel_errors_total{channel}
  - atelier_channel_candidates{channel}

Sessions and interactions:
  - atelier_sessions_active
  - atelier_session_evictions_total
  - atelier_interactions_recorded_total

Infrastructure:
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total
  - atelier_events_published_total, atelier_events_consumed_total
  - atelier_embedding_requests_total, atelier_embedding_cache_total
  - atelier_snapshot_duration_seconds, atelier_snapshot_sessions
  - atelier_catalog_items, atelier_catalog_load_duration_seconds

# Usage

	start := time.Now()
	page, err := engine.Recommend(ctx, req)
	metrics.RecordPage(metrics.PageOutcome(page.Short, page.Fallback, len(page.Items)), time.Since(start), len(page.Items))

Label cardinality is bounded: channel names come from configuration and API
endpoints are recorded by route pattern, never by raw path.
*/
package metrics

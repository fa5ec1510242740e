// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package middleware provides the chi-compatible HTTP middleware used by the API
router.

Components:

  - RequestID: propagates or generates an X-Request-ID and stores it in the
    request context for logging.
  - AccessLog: one zerolog line per request with status, bytes and latency.
  - PrometheusMetrics: request counters and latency histograms labeled by
    chi route pattern, so path parameters do not explode cardinality.
  - BearerAuth: optional HMAC JWT check; the token subject must equal the
    {userID} route parameter.

Typical stack:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.PrometheusMetrics)
	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
	    r.Use(middleware.BearerAuth(secret, issuer))
	    ...
	})
*/
package middleware

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package api exposes the recommendation engine over HTTP using the chi router.

Routes:

	GET  /healthz                                liveness
	GET  /metrics                                Prometheus scrape
	GET  /api/v1/status                          engine counters
	GET  /api/v1/items/{itemID}                  catalog metadata
	GET  /api/v1/users/{userID}/page?page=N      next page (JSON)
	GET  /api/v1/users/{userID}/page.csv         next page (CSV)
	POST /api/v1/users/{userID}/interactions     record interactions (202)
	PUT  /api/v1/users/{userID}/preferences      survey and cold-start answers
	GET  /api/v1/users/{userID}/state            window and engagement

Every JSON response uses the models.APIResponse envelope. Interactions are
handed to an InteractionPublisher when one is configured (the event bus) and
applied directly to the engine otherwise.

Global middleware, outermost first: request ID, real IP, recoverer, access
log, Prometheus metrics, CORS. The /api/v1 group adds per-IP rate limiting;
the user group adds bearer-token auth when a TokenVerifier is configured.
*/
package api

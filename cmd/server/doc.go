// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Command server runs the Atelier recommendation API.

Startup order:

 1. Configuration: Koanf v2 (defaults, config.yaml, ATELIER_* environment)
 2. Logging: zerolog, JSON or console
 3. State store: BadgerDB for sessions and interaction logs
 4. Catalog: JSON, CSV or a DuckDB query, with tag aliases and tag types
 5. Vector indexes: image and description flat indexes from disk
 6. Embedder: static table or OpenAI-compatible HTTP, TTL-cached
 7. Derived data: tag index and cold-start facet table (snapshot cached)
 8. Engine: per-user channel sets built by the channel factory
 9. Event bus: watermill over gochannel or NATS, optional BadgerDB outbox
 10. HTTP: chi router, optional JWT bearer auth
 11. Supervisor tree: storage maintenance and state backups, event router
    and outbox retry, HTTP server

The process stops on SIGINT or SIGTERM. Dirty sessions are flushed before
the state store closes.

# Example

	export CONFIG_PATH=/etc/atelier/config.yaml
	export ATELIER_AUTH_MODE=jwt
	export ATELIER_JWT_SECRET=$(openssl rand -base64 32)
	./atelier-server
*/
package main

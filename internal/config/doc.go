// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package config loads and validates Atelier's configuration.

# Sources

LoadWithKoanf layers three sources, later ones winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/atelier/config.yaml
 3. Environment variables listed in the mapping table of envTransformFunc

Unmapped environment variables are ignored.

# Environment Variables

A selection; see envMappings for the full table.

Server:
  - ATELIER_HTTP_HOST, ATELIER_HTTP_PORT: listen address (default 0.0.0.0:8642)
  - ATELIER_ENVIRONMENT: development or production

Catalog and embeddings:
  - ATELIER_CATALOG_PATH, ATELIER_CATALOG_FORMAT, ATELIER_CATALOG_QUERY
  - ATELIER_IMAGE_INDEX, ATELIER_DESCRIPTION_INDEX: binary index files
  - ATELIER_EMBEDDING_PROVIDER: none, static or http

Recommendation:
  - ATELIER_PAGE_QUOTA (default 40)
  - ATELIER_COLD_START_TOP_K (default 55)
  - ATELIER_BLENDER_PARALLEL (default false)

Storage and events:
  - ATELIER_STATE_PATH: BadgerDB directory
  - ATELIER_EVENTS_TRANSPORT: gochannel or nats
  - ATELIER_NATS_URL

Security:
  - ATELIER_AUTH_MODE: none or jwt
  - ATELIER_JWT_SECRET: HMAC secret, at least 32 characters
  - ATELIER_CORS_ORIGINS: comma-separated origins

# Validation

Validate runs validator struct tags first, then cross-field checks, then the
recommendation engine's own Validate. Any failure aborts startup.
*/
package config

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package cache provides the in-memory caches used by Atelier.
//
//   - LRU: bounded, generic least-recently-used map with an eviction
//     callback. The recommendation engine keeps per-user sessions in it and
//     persists sessions as they are evicted.
//   - Cache: generic TTL cache with background cleanup. The embedding layer
//     memoizes text embeddings in it.
//
// Both are safe for concurrent use.
package cache

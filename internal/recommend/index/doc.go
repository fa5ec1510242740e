// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package index provides an exact (flat) nearest-neighbor index over dense
// float32 vectors keyed by int64 item IDs.
//
// # Metrics
//
//   - MetricL2: squared Euclidean distance
//   - MetricInnerProduct: dot product, reported as a negated distance
//
// Search results are always ordered by ascending Distance, so "nearest
// first" holds for both metrics. Ties are broken by ascending ID to keep
// output deterministic.
//
// # File Format
//
// Save writes a little-endian binary file: the magic "ATLXIDX1", the metric,
// the dimension, the vector count, all IDs, all vector components and finally
// a SHA-256 checksum of the preceding bytes. Load rejects files whose
// checksum does not match.
package index

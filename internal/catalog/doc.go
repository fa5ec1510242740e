// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package catalog holds the read-only artwork catalog shared by every
// recommendation channel.
//
// A Catalog is built once from a slice of Items and never mutated, so it can
// be shared across goroutines without locking. It precomputes the lookups the
// channels need: items by artist, items by tag, global tag counts (the
// denominator of tag click rates) and tag types.
//
// # Sources
//
//   - JSON: an array of items, or one item per line (JSON lines)
//   - CSV: header row naming the columns; list columns separated by "|"
//   - DuckDB: any SQL query, including read_csv_auto and read_parquet
//
// Tag aliases (rare tag to root tag, see ConsolidateTags) are applied while
// the catalog is built.
package catalog

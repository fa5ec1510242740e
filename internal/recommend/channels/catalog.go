// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"

	"github.com/tomtom215/atelier/internal/recommend/index"
)

// Catalog is the read-only item metadata the channels depend on.
// *catalog.Catalog implements it.
type Catalog interface {
	IDs() []int64
	Has(id int64) bool
	Artist(id int64) string
	ItemsByArtist(artist string) []int64
	Tags(id int64) []string
	ItemsWithTag(tag string) []int64
	TagCount(tag string) int
	TagType(tag string) string
	TagNames() []string
}

// Searcher finds nearest neighbors of stored vectors.
// *index.FlatIndex implements it.
type Searcher interface {
	SearchByID(ctx context.Context, id int64, k int) ([]index.Neighbor, error)
	Has(id int64) bool
	Len() int
}

// filterIDs returns ids not in exclude, preserving order.
func filterIDs(ids []int64, exclude map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, skip := exclude[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/atelier/internal/recommend/index"
)

// DefaultSynonymThreshold is the cosine similarity above which a rare tag is
// folded into a common one.
const DefaultSynonymThreshold = 0.95

// ConsolidateOptions controls ConsolidateTags.
type ConsolidateOptions struct {
	// MinCount is the count at or above which a tag is a root. Tags below it
	// are candidates for folding.
	MinCount int

	// Threshold is the minimum cosine similarity to fold a tag.
	Threshold float64
}

// ConsolidateTags maps rare tags onto their most similar root tag when the
// cosine similarity of their embeddings reaches the threshold. Tags without
// a vector are left alone. The result is an alias table suitable for
// Options.Aliases and WriteAliases.
//
//nolint:gocritic // hugeParam: opts is a small config value
func ConsolidateTags(ctx context.Context, counts map[string]int, vectors map[string][]float32, opts ConsolidateOptions) (map[string]string, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSynonymThreshold
	}

	roots := make([]string, 0, len(counts))
	var rare []string
	dim := 0
	for _, tag := range sortedKeys(counts) {
		vec, ok := vectors[tag]
		if !ok {
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if counts[tag] >= opts.MinCount {
			roots = append(roots, tag)
		} else {
			rare = append(rare, tag)
		}
	}

	aliases := make(map[string]string)
	if len(roots) == 0 || len(rare) == 0 {
		return aliases, nil
	}

	idx, err := index.New(dim, index.MetricInnerProduct)
	if err != nil {
		return nil, err
	}
	for i, tag := range roots {
		if err := idx.Add(int64(i), index.Normalize(vectors[tag])); err != nil {
			return nil, fmt.Errorf("index tag %q: %w", tag, err)
		}
	}

	for _, tag := range rare {
		hits, err := idx.Search(ctx, index.Normalize(vectors[tag]), 1)
		if err != nil {
			return nil, fmt.Errorf("search tag %q: %w", tag, err)
		}
		if len(hits) == 0 {
			continue
		}
		if float64(hits[0].Similarity()) >= opts.Threshold {
			aliases[tag] = roots[hits[0].ID]
		}
	}
	return aliases, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package embedding provides text embeddings for facet values and tags.
//
// Embeddings come from a precomputed table (Static) or from an
// OpenAI-compatible HTTP service (HTTPEmbedder). Cached wraps either one with
// an in-memory TTL cache so repeated facet values are fetched once.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no embedding source can serve a request.
var ErrUnavailable = errors.New("embedding: unavailable")

// Embedder generates vector embeddings from text.
//
// Embed returns one vector per input text, in input order. A nil vector means
// the source has no embedding for that text; callers skip such entries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Lookup embeds texts and returns the vectors that were found, keyed by text.
func Lookup(ctx context.Context, e Embedder, texts []string) (map[string][]float32, error) {
	if len(texts) == 0 {
		return map[string][]float32{}, nil
	}
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(texts))
	for i, v := range vecs {
		if i < len(texts) && v != nil {
			out[texts[i]] = v
		}
	}
	return out, nil
}

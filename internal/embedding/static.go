// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package embedding

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// Static serves embeddings from a precomputed text -> vector table.
type Static struct {
	model   string
	dim     int
	vectors map[string][]float32
}

// NewStatic builds a table. All vectors must share one dimension.
func NewStatic(model string, vectors map[string][]float32) (*Static, error) {
	dim := 0
	for text, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return nil, fmt.Errorf("embedding %q has dimension %d, want %d", text, len(v), dim)
		}
	}
	return &Static{model: model, dim: dim, vectors: vectors}, nil
}

// LoadStaticFile reads a JSON object mapping text to vector.
func LoadStaticFile(path, model string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embedding table: %w", err)
	}
	defer f.Close()
	return ReadStatic(f, model)
}

// ReadStatic parses a JSON object mapping text to vector.
func ReadStatic(r io.Reader, model string) (*Static, error) {
	var vectors map[string][]float32
	if err := json.NewDecoder(r).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embedding table: %w", err)
	}
	return NewStatic(model, vectors)
}

// Embed implements Embedder. Unknown texts yield nil vectors.
func (s *Static) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}

// Dimensions implements Embedder.
func (s *Static) Dimensions() int { return s.dim }

// Model implements Embedder.
func (s *Static) Model() string { return s.model }

// Len returns the number of texts in the table.
func (s *Static) Len() int { return len(s.vectors) }

// Texts returns every text in the table, sorted.
func (s *Static) Texts() []string {
	out := make([]string, 0, len(s.vectors))
	for t := range s.vectors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

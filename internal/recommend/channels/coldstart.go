// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/embedding"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/index"
)

// Facet positions in FacetVectors.
const (
	FacetArtist = iota
	FacetStyle
	FacetTheme
	FacetMovement
	numFacets
)

// FacetVectors holds the mean embedding of each facet. A nil entry means the
// facet had no embeddable value.
type FacetVectors [numFacets][]float32

// FacetTable holds the facet embeddings of every catalog item. It is
// gob-encodable so it can be cached on disk.
type FacetTable struct {
	Model string
	Dim   int
	Items map[int64]FacetVectors
}

// facetValues returns the artist, style, theme and movement values.
// Artist names lose their parenthesized qualifiers.
func facetValues(artists, styles, themes, movements []string) [numFacets][]string {
	cleaned := make([]string, 0, len(artists))
	for _, a := range artists {
		if c := catalog.CleanArtistName(a); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return [numFacets][]string{cleaned, styles, themes, movements}
}

// BuildFacetTable embeds every distinct facet value once and averages the
// vectors per item and facet.
func BuildFacetTable(ctx context.Context, e embedding.Embedder, items []catalog.Item) (*FacetTable, error) {
	values := make([][numFacets][]string, len(items))
	seen := make(map[string]struct{})
	var texts []string
	for i := range items {
		it := &items[i]
		values[i] = facetValues([]string{it.ArtistDisplay}, it.Styles, it.Themes, it.Movements)
		for _, list := range values[i] {
			for _, v := range list {
				if _, ok := seen[v]; !ok {
					seen[v] = struct{}{}
					texts = append(texts, v)
				}
			}
		}
	}

	vecs, err := embedding.Lookup(ctx, e, texts)
	if err != nil {
		return nil, fmt.Errorf("embed facet values: %w", err)
	}

	table := &FacetTable{Model: e.Model(), Dim: e.Dimensions(), Items: make(map[int64]FacetVectors, len(items))}
	for i := range items {
		table.Items[items[i].ID] = meanFacets(values[i], vecs)
	}
	return table, nil
}

func meanFacets(values [numFacets][]string, vecs map[string][]float32) FacetVectors {
	var fv FacetVectors
	for f, list := range values {
		var found [][]float32
		for _, v := range list {
			if vec, ok := vecs[v]; ok {
				found = append(found, vec)
			}
		}
		fv[f] = index.Mean(found)
	}
	return fv
}

// SimilarityFunc scores two facet vectors; higher is more similar.
type SimilarityFunc func(a, b []float32) float64

// ParseSimilarity returns the similarity function for cosine, neg_l1 or dot.
func ParseSimilarity(name string) (SimilarityFunc, error) {
	switch name {
	case recommend.SimilarityCosine, "":
		return index.Cosine, nil
	case recommend.SimilarityNegL1:
		return func(a, b []float32) float64 { return -index.L1(a, b) }, nil
	case recommend.SimilarityDot:
		return index.Dot, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", name)
	}
}

// ColdStart matches survey preferences against item facet embeddings for
// users without interactions.
type ColdStart struct {
	table    *FacetTable
	embedder embedding.Embedder
	sim      SimilarityFunc
	weights  [numFacets]float64

	mu   sync.Mutex
	user *FacetVectors
}

// NewColdStart creates a cold-start channel.
func NewColdStart(table *FacetTable, e embedding.Embedder, cfg recommend.ColdStartConfig) (*ColdStart, error) {
	sim, err := ParseSimilarity(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	w := cfg.Weights
	return &ColdStart{
		table:    table,
		embedder: e,
		sim:      sim,
		weights:  [numFacets]float64{w.Artist, w.Style, w.Theme, w.Movement},
	}, nil
}

// Name implements recommend.Channel.
func (c *ColdStart) Name() string { return recommend.ChannelColdStart }

// UpdateData embeds the user's facet preferences.
func (c *ColdStart) UpdateData(ctx context.Context, signals recommend.Signals) error {
	prefs := signals.Preferences
	if !prefs.HasFacets() {
		c.mu.Lock()
		c.user = nil
		c.mu.Unlock()
		return nil
	}

	values := facetValues(prefs.Artists, prefs.Styles, prefs.Themes, prefs.Movements)
	var texts []string
	for _, list := range values {
		texts = append(texts, list...)
	}
	vecs, err := embedding.Lookup(ctx, c.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed preferences: %w", err)
	}

	user := meanFacets(values, vecs)
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return nil
}

// Score returns the weighted mean facet similarity of user and item. Facets
// missing on either side are left out of the mean. ok is false when no facet
// could be compared.
func (c *ColdStart) Score(user, item *FacetVectors) (score float64, ok bool) {
	var sum, weight float64
	for f := 0; f < numFacets; f++ {
		u, v := user[f], item[f]
		if u == nil || v == nil || len(u) != len(v) || c.weights[f] == 0 {
			continue
		}
		sum += c.weights[f] * c.sim(u, v)
		weight += c.weights[f]
	}
	if weight == 0 {
		return 0, false
	}
	return sum / weight, true
}

// Produce returns the req.Quota best-matching items, best first.
func (c *ColdStart) Produce(ctx context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil || c.table == nil {
		return recommend.ChannelResult{}, nil
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, 0, len(c.table.Items))
	n := 0
	for id, fv := range c.table.Items {
		if n++; n%1024 == 0 && ctx.Err() != nil {
			return recommend.ChannelResult{}, ctx.Err()
		}
		if req.Exclude.Has(id) {
			continue
		}
		s, ok := c.Score(user, &fv)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > req.Quota {
		ranked = ranked[:req.Quota]
	}

	cands := make([]recommend.Candidate, len(ranked))
	for i, r := range ranked {
		cands[i] = recommend.Candidate{ItemID: r.id, Label: recommend.ChannelColdStart}
	}
	return recommend.Single(cands), nil
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/atelier/internal/recommend"
)

// TypedTagsConfig configures a TypedTags channel.
type TypedTagsConfig struct {
	// Alpha blends tag and type click rates: alpha*tag + (1-alpha)*type.
	Alpha  float64
	NumTag int
	LogLen int
}

// scoredItem is one candidate with its blended score.
type scoredItem struct {
	id    int64
	tag   string
	score float64
}

// typeCandidates are the ranked candidates of one tag type.
type typeCandidates struct {
	typ   string
	rate  float64
	last  time.Time
	items []scoredItem
}

// TypedTags ranks works by a blend of tag click rates and tag-type click
// rates. Every tag type seen in the log contributes at least its best item
// to the page.
type TypedTags struct {
	catalog    Catalog
	cfg        TypedTagsConfig
	typeTotals map[string]int

	mu    sync.Mutex
	types []typeCandidates
}

// NewTypedTags creates a typed-tags channel. Per-type global counts are
// computed once from cat.
func NewTypedTags(cat Catalog, cfg TypedTagsConfig) *TypedTags {
	totals := make(map[string]int)
	for _, tag := range cat.TagNames() {
		totals[cat.TagType(tag)] += cat.TagCount(tag)
	}
	return &TypedTags{catalog: cat, cfg: cfg, typeTotals: totals}
}

// Name implements recommend.Channel.
func (t *TypedTags) Name() string { return recommend.ChannelTypedTags }

// UpdateData recomputes tag and type click rates and the per-type candidates.
func (t *TypedTags) UpdateData(_ context.Context, signals recommend.Signals) error {
	log := signals.Log
	if len(log) > t.cfg.LogLen {
		log = log[:t.cfg.LogLen]
	}

	type typeStat struct {
		count int
		last  time.Time
	}
	stats := make(map[string]*typeStat)
	for _, e := range log {
		for _, tag := range t.catalog.Tags(e.ItemID) {
			typ := t.catalog.TagType(tag)
			st, ok := stats[typ]
			if !ok {
				st = &typeStat{}
				stats[typ] = st
			}
			st.count++
			if e.Timestamp.After(st.last) {
				st.last = e.Timestamp
			}
		}
	}

	byType := make(map[string][]TagRate)
	for _, r := range ClickRates(t.catalog, log) {
		typ := t.catalog.TagType(r.Tag)
		if len(byType[typ]) < t.cfg.NumTag {
			byType[typ] = append(byType[typ], r)
		}
	}

	var types []typeCandidates
	for typ, st := range stats {
		total := t.typeTotals[typ]
		if total == 0 || len(byType[typ]) == 0 {
			continue
		}
		tc := typeCandidates{typ: typ, rate: float64(st.count) / float64(total), last: st.last}

		rates := make(map[string]float64, len(byType[typ]))
		for _, r := range byType[typ] {
			rates[r.Tag] = r.Rate
		}
		for _, r := range byType[typ] {
			blended := t.cfg.Alpha*r.Rate + (1-t.cfg.Alpha)*tc.rate
			for _, id := range rankByTagScore(t.catalog, r.Tag, rates) {
				tc.items = append(tc.items, scoredItem{id: id, tag: r.Tag, score: blended})
			}
		}
		types = append(types, tc)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].rate != types[j].rate {
			return types[i].rate > types[j].rate
		}
		if !types[i].last.Equal(types[j].last) {
			return types[i].last.After(types[j].last)
		}
		return types[i].typ < types[j].typ
	})

	t.mu.Lock()
	t.types = types
	t.mu.Unlock()
	return nil
}

// Produce returns one group: the best unexcluded item of every type, then the
// highest blended scores up to the quota, ordered by score.
func (t *TypedTags) Produce(_ context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	chosen := make(recommend.ItemSet)
	var guaranteed, pool []scoredItem
	for _, tc := range t.types {
		best := -1
		for i, it := range tc.items {
			if req.Exclude.Has(it.id) {
				continue
			}
			pool = append(pool, it)
			if chosen.Has(it.id) {
				continue
			}
			if best < 0 || it.score > tc.items[best].score {
				best = i
			}
		}
		if best >= 0 {
			guaranteed = append(guaranteed, tc.items[best])
			chosen.Add(tc.items[best].id)
		}
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].score > pool[j].score })
	selected := guaranteed
	for _, it := range pool {
		if len(selected) >= req.Quota {
			break
		}
		if chosen.Has(it.id) {
			continue
		}
		chosen.Add(it.id)
		selected = append(selected, it)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].score > selected[j].score })

	cands := make([]recommend.Candidate, len(selected))
	for i, it := range selected {
		cands[i] = recommend.Candidate{ItemID: it.id, Label: "Tag: " + it.tag}
	}
	return recommend.Single(cands), nil
}

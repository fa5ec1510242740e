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

	"github.com/tomtom215/atelier/internal/embedding"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/index"
)

// TagIndex maps tag names to vectors in a nearest-neighbor index. Vector IDs
// are positions in the name list.
type TagIndex struct {
	index Searcher
	names []string
	ids   map[string]int64
}

// NewTagIndex wraps idx, whose vector IDs are positions in names.
func NewTagIndex(names []string, idx Searcher) *TagIndex {
	ids := make(map[string]int64, len(names))
	for i, n := range names {
		ids[n] = int64(i)
	}
	return &TagIndex{index: idx, names: names, ids: ids}
}

// BuildTagIndex embeds names and indexes the vectors that were found.
func BuildTagIndex(ctx context.Context, e embedding.Embedder, names []string, metric index.Metric) (*TagIndex, *index.FlatIndex, error) {
	names = append([]string(nil), names...)
	sort.Strings(names)

	vecs, err := embedding.Lookup(ctx, e, names)
	if err != nil {
		return nil, nil, fmt.Errorf("embed tags: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil, fmt.Errorf("embed tags: %w", embedding.ErrUnavailable)
	}

	dim := 0
	for _, v := range vecs {
		dim = len(v)
		break
	}
	idx, err := index.New(dim, metric)
	if err != nil {
		return nil, nil, err
	}
	for i, name := range names {
		if v, ok := vecs[name]; ok {
			if err := idx.Add(int64(i), v); err != nil {
				return nil, nil, fmt.Errorf("index tag %q: %w", name, err)
			}
		}
	}
	return NewTagIndex(names, idx), idx, nil
}

// Names returns the tag names in vector ID order.
func (t *TagIndex) Names() []string { return t.names }

// Has reports whether tag has an indexed vector.
func (t *TagIndex) Has(tag string) bool {
	id, ok := t.ids[tag]
	return ok && t.index.Has(id)
}

// Len returns the number of indexed tags.
func (t *TagIndex) Len() int { return t.index.Len() }

// Neighbors returns up to k tags nearest to tag, excluding tag itself.
func (t *TagIndex) Neighbors(ctx context.Context, tag string, k int) ([]string, error) {
	if !t.Has(tag) {
		return nil, fmt.Errorf("%w: tag %q", index.ErrUnknownID, tag)
	}
	hits, err := t.index.SearchByID(ctx, t.ids[tag], k)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ID >= 0 && int(h.ID) < len(t.names) {
			out = append(out, t.names[h.ID])
		}
	}
	return out, nil
}

// Profile proposes works carrying tags similar to the user's survey answers.
type Profile struct {
	catalog Catalog
	tags    *TagIndex

	mu     sync.Mutex
	survey map[string]string
}

// NewProfile creates a profile channel. A nil tags index yields no candidates.
func NewProfile(cat Catalog, tags *TagIndex) *Profile {
	return &Profile{catalog: cat, tags: tags}
}

// Name implements recommend.Channel.
func (p *Profile) Name() string { return recommend.ChannelProfile }

// UpdateData stores the survey answers.
func (p *Profile) UpdateData(_ context.Context, signals recommend.Signals) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.survey = make(map[string]string, len(signals.Preferences.Survey))
	for typ, tag := range signals.Preferences.Survey {
		p.survey[typ] = tag
	}
	return nil
}

// Produce returns one group of works, ordered by survey type, whose tags are
// nearest to each answered tag. k expands while every type is short of the
// quota, bounded by the tag index size.
func (p *Profile) Produce(ctx context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	if p.tags == nil || p.tags.Len() < 2 {
		return recommend.ChannelResult{}, nil
	}

	p.mu.Lock()
	types := make([]string, 0, len(p.survey))
	for typ, tag := range p.survey {
		if p.tags.Has(tag) {
			types = append(types, typ)
		}
	}
	sort.Strings(types)
	survey := p.survey
	p.mu.Unlock()

	if len(types) == 0 {
		return recommend.ChannelResult{}, nil
	}

	limit := p.tags.Len() - 1
	k := min(max(req.Quota, 1), limit)
	var lists [][]int64
	for {
		lists = lists[:0]
		allShort := true
		for _, typ := range types {
			ids, err := p.itemsNear(ctx, survey[typ], k, req.Exclude)
			if err != nil {
				return recommend.ChannelResult{}, err
			}
			lists = append(lists, ids)
			if len(ids) >= req.Quota {
				allShort = false
			}
		}
		if !allShort || k >= limit {
			break
		}
		k = min(k+max(req.Quota, 1), limit)
	}

	seen := make(recommend.ItemSet)
	var cands []recommend.Candidate
	for i, typ := range types {
		for _, id := range lists[i] {
			if seen.Has(id) {
				continue
			}
			seen.Add(id)
			cands = append(cands, recommend.Candidate{ItemID: id, Label: "Profile Tag: " + typ})
		}
	}
	return recommend.Single(cands), nil
}

// itemsNear returns the unexcluded works carrying any of the k tags nearest
// to tag, in neighbor order.
func (p *Profile) itemsNear(ctx context.Context, tag string, k int, exclude recommend.ItemSet) ([]int64, error) {
	neighbors, err := p.tags.Neighbors(ctx, tag, k)
	if err != nil {
		return nil, fmt.Errorf("tag neighbors of %q: %w", tag, err)
	}
	seen := make(recommend.ItemSet)
	var out []int64
	for _, n := range neighbors {
		for _, id := range p.catalog.ItemsWithTag(n) {
			if exclude.Has(id) || seen.Has(id) {
				continue
			}
			seen.Add(id)
			out = append(out, id)
		}
	}
	return out, nil
}

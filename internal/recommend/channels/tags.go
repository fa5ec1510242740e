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

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/recommend"
)

// ChannelFixedTags names the fixed-rate tag channel.
const ChannelFixedTags = "fixed_tags"

// TagRate is the click rate of one tag over a user's recent log.
type TagRate struct {
	Tag   string
	Count int
	Rate  float64
	Last  time.Time
}

// ClickRates counts tag occurrences over log and normalizes each count by the
// tag's global catalog count. The result is ordered by rate desc, most recent
// occurrence desc, then tag name.
func ClickRates(cat Catalog, log []interactions.Entry) []TagRate {
	byTag := make(map[string]*TagRate)
	for _, e := range log {
		for _, tag := range cat.Tags(e.ItemID) {
			tr, ok := byTag[tag]
			if !ok {
				tr = &TagRate{Tag: tag}
				byTag[tag] = tr
			}
			tr.Count++
			if e.Timestamp.After(tr.Last) {
				tr.Last = e.Timestamp
			}
		}
	}

	out := make([]TagRate, 0, len(byTag))
	for tag, tr := range byTag {
		global := cat.TagCount(tag)
		if global == 0 {
			continue
		}
		tr.Rate = float64(tr.Count) / float64(global)
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		if !out[i].Last.Equal(out[j].Last) {
			return out[i].Last.After(out[j].Last)
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// rankByTagScore returns the items carrying tag ordered by the sum of rates
// of their tags (desc), ID asc on ties.
func rankByTagScore(cat Catalog, tag string, rates map[string]float64) []int64 {
	ids := append([]int64(nil), cat.ItemsWithTag(tag)...)
	score := make(map[int64]float64, len(ids))
	for _, id := range ids {
		var s float64
		for _, t := range cat.Tags(id) {
			s += rates[t]
		}
		score[id] = s
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if score[ids[i]] != score[ids[j]] {
			return score[ids[i]] > score[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// tagGroups builds one labelled group per tag, dropping excluded items and
// empty groups.
func tagGroups(tags []string, lists [][]int64, exclude recommend.ItemSet) recommend.ChannelResult {
	var res recommend.ChannelResult
	for i, tag := range tags {
		ids := filterIDs(lists[i], exclude)
		if len(ids) == 0 {
			continue
		}
		group := make([]recommend.Candidate, len(ids))
		for j, id := range ids {
			group[j] = recommend.Candidate{ItemID: id, Label: "Tag: " + tag}
		}
		res.Groups = append(res.Groups, group)
	}
	return res
}

// Tags proposes works sharing the tags with the highest click rates in the
// user's recent log.
type Tags struct {
	catalog Catalog
	numTag  int
	logLen  int

	mu    sync.Mutex
	tags  []string
	lists [][]int64
}

// NewTags creates a common-tags channel selecting numTag tags over the last
// logLen unique log entries.
func NewTags(cat Catalog, numTag, logLen int) *Tags {
	return &Tags{catalog: cat, numTag: numTag, logLen: logLen}
}

// Name implements recommend.Channel.
func (t *Tags) Name() string { return recommend.ChannelTags }

// UpdateData recomputes the selected tags and their ranked candidates.
func (t *Tags) UpdateData(_ context.Context, signals recommend.Signals) error {
	log := signals.Log
	if len(log) > t.logLen {
		log = log[:t.logLen]
	}

	rates := ClickRates(t.catalog, log)
	if len(rates) > t.numTag {
		rates = rates[:t.numTag]
	}

	selected := make(map[string]float64, len(rates))
	for _, r := range rates {
		selected[r.Tag] = r.Rate
	}
	tags := make([]string, len(rates))
	lists := make([][]int64, len(rates))
	for i, r := range rates {
		tags[i] = r.Tag
		lists[i] = rankByTagScore(t.catalog, r.Tag, selected)
	}

	t.mu.Lock()
	t.tags, t.lists = tags, lists
	t.mu.Unlock()
	return nil
}

// Produce implements recommend.Channel.
func (t *Tags) Produce(_ context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tagGroups(t.tags, t.lists, req.Exclude), nil
}

// FixedTags proposes works for a fixed tag to rate table. It serves as the
// fallback of the tag channels for users without a usable history.
type FixedTags struct {
	tags  []string
	lists [][]int64
}

// NewFixedTags ranks the catalog once for rates. Tags absent from the
// catalog are ignored.
func NewFixedTags(cat Catalog, rates map[string]float64) *FixedTags {
	var tags []string
	for tag := range rates {
		if cat.TagCount(tag) > 0 {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		if rates[tags[i]] != rates[tags[j]] {
			return rates[tags[i]] > rates[tags[j]]
		}
		return tags[i] < tags[j]
	})

	f := &FixedTags{tags: tags, lists: make([][]int64, len(tags))}
	for i, tag := range tags {
		f.lists[i] = rankByTagScore(cat, tag, rates)
	}
	return f
}

// Name implements recommend.Channel.
func (f *FixedTags) Name() string { return ChannelFixedTags }

// UpdateData implements recommend.Channel.
func (f *FixedTags) UpdateData(context.Context, recommend.Signals) error { return nil }

// Produce implements recommend.Channel.
func (f *FixedTags) Produce(_ context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	return tagGroups(f.tags, f.lists, req.Exclude), nil
}

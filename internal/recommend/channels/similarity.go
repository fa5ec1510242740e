// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/index"
)

// SimilarityMode selects how per-seed neighbor lists are returned.
type SimilarityMode int

const (
	// PerSeed returns one shuffled group per seed.
	PerSeed SimilarityMode = iota
	// Merged returns one group of all neighbors sorted by distance.
	Merged
)

// SimilarityConfig configures a Similarity channel.
type SimilarityConfig struct {
	// Name is the channel name, e.g. recommend.ChannelImage.
	Name string

	// LabelPrefix precedes the seed ID in labels, e.g. "Image".
	LabelPrefix string

	Mode SimilarityMode

	// NumSeeds is how many recent interactions become new seeds.
	NumSeeds int

	// ShuffleLen is how many leading neighbors per seed are shuffled.
	ShuffleLen int

	// SeedCarry is how many produced candidates become the next seeds.
	SeedCarry int
}

// Similarity proposes nearest neighbors of seed items in an embedding index.
//
// Seeds come from the most recent interactions, or the random channel's
// fresh list when there is no history. After every produce call the seed
// list rolls forward to the last SeedCarry produced candidates.
type Similarity struct {
	cfg    SimilarityConfig
	index  Searcher
	logger zerolog.Logger

	mu    sync.Mutex
	seeds []int64
}

// NewSimilarity creates a similarity channel over idx. A nil idx yields no
// candidates.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSimilarity(cfg SimilarityConfig, idx Searcher, logger zerolog.Logger) *Similarity {
	if cfg.NumSeeds <= 0 {
		cfg.NumSeeds = 8
	}
	if cfg.SeedCarry <= 0 {
		cfg.SeedCarry = 40
	}
	return &Similarity{
		cfg:    cfg,
		index:  idx,
		logger: logger.With().Str("channel", cfg.Name).Logger(),
	}
}

// Name implements recommend.Channel.
func (s *Similarity) Name() string { return s.cfg.Name }

// UpdateData appends recently interacted items that are not seeds yet.
func (s *Similarity) UpdateData(_ context.Context, signals recommend.Signals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := recommend.NewItemSet(s.seeds...)
	for i, e := range signals.Log {
		if i >= s.cfg.NumSeeds {
			break
		}
		if !have.Has(e.ItemID) {
			s.seeds = append(s.seeds, e.ItemID)
			have.Add(e.ItemID)
		}
	}
	return nil
}

// Seeds implements recommend.SeedHolder.
func (s *Similarity) Seeds() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.seeds...)
}

// RestoreSeeds implements recommend.SeedHolder.
func (s *Similarity) RestoreSeeds(seeds []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds = append([]int64(nil), seeds...)
}

// seedNeighbors holds the filtered neighbors of one seed.
type seedNeighbors struct {
	seed      int64
	neighbors []index.Neighbor
}

// Produce implements recommend.Channel.
func (s *Similarity) Produce(ctx context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	if s.index == nil || s.index.Len() < 2 {
		return recommend.ChannelResult{}, nil
	}

	s.mu.Lock()
	seeds := s.seeds
	if len(seeds) == 0 {
		seeds = req.DefaultSeeds
	}
	seeds = append([]int64(nil), seeds...)
	s.mu.Unlock()

	lists, err := s.search(ctx, seeds, req.Exclude, req.Quota)
	if err != nil {
		return recommend.ChannelResult{}, err
	}

	var res recommend.ChannelResult
	if s.cfg.Mode == Merged {
		res = s.merged(lists)
	} else {
		res = s.perSeed(lists, req)
	}

	s.mu.Lock()
	produced := res.ItemIDs()
	if len(produced) > s.cfg.SeedCarry {
		produced = produced[len(produced)-s.cfg.SeedCarry:]
	}
	if len(produced) > 0 {
		s.seeds = produced
	} else {
		s.seeds = seeds
	}
	s.mu.Unlock()

	return res, nil
}

// search queries every known seed, expanding k by quota until each seed has
// at least quota unexcluded neighbors or k covers the whole index.
func (s *Similarity) search(ctx context.Context, seeds []int64, exclude recommend.ItemSet, quota int) ([]seedNeighbors, error) {
	known := make([]int64, 0, len(seeds))
	for _, id := range seeds {
		if s.index.Has(id) {
			known = append(known, id)
		}
	}
	if len(known) < len(seeds) {
		s.logger.Debug().Int("missing", len(seeds)-len(known)).Msg("seeds without embeddings skipped")
	}

	limit := s.index.Len() - 1
	k := min(2*quota, limit)
	lists := make([]seedNeighbors, len(known))
	for i, id := range known {
		lists[i].seed = id
	}

	pending := make([]int, len(known))
	for i := range pending {
		pending[i] = i
	}

	for len(pending) > 0 {
		var short []int
		for _, i := range pending {
			hits, err := s.index.SearchByID(ctx, lists[i].seed, k)
			if err != nil {
				if errors.Is(err, index.ErrUnknownID) {
					continue
				}
				return nil, fmt.Errorf("search neighbors of %d: %w", lists[i].seed, err)
			}
			filtered := hits[:0]
			for _, h := range hits {
				if !exclude.Has(h.ID) {
					filtered = append(filtered, h)
				}
			}
			lists[i].neighbors = filtered
			if len(filtered) < quota {
				short = append(short, i)
			}
		}
		if k >= limit {
			break
		}
		k = min(k+quota, limit)
		pending = short
	}
	return lists, nil
}

// perSeed shuffles the first ShuffleLen neighbors of each seed and truncates
// every list to the quota.
func (s *Similarity) perSeed(lists []seedNeighbors, req recommend.ProduceRequest) recommend.ChannelResult {
	var res recommend.ChannelResult
	for _, l := range lists {
		ids := make([]int64, len(l.neighbors))
		for i, n := range l.neighbors {
			ids[i] = n.ID
		}

		head := min(s.cfg.ShuffleLen, len(ids))
		if req.Rand != nil && head > 1 {
			req.Rand.Shuffle(head, func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		}
		if len(ids) > req.Quota {
			ids = ids[:req.Quota]
		}
		if len(ids) == 0 {
			continue
		}

		label := s.cfg.LabelPrefix + ": " + strconv.FormatInt(l.seed, 10)
		group := make([]recommend.Candidate, len(ids))
		for i, id := range ids {
			group[i] = recommend.Candidate{ItemID: id, Label: label}
		}
		res.Groups = append(res.Groups, group)
	}
	return res
}

// merged returns every neighbor of every seed in one group, nearest first.
// An item reached from several seeds keeps its nearest occurrence.
func (s *Similarity) merged(lists []seedNeighbors) recommend.ChannelResult {
	type hit struct {
		id, seed int64
		dist     float32
	}
	var hits []hit
	for _, l := range lists {
		for _, n := range l.neighbors {
			hits = append(hits, hit{id: n.ID, seed: l.seed, dist: n.Distance})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id < hits[j].id
	})

	seen := make(recommend.ItemSet, len(hits))
	cands := make([]recommend.Candidate, 0, len(hits))
	for _, h := range hits {
		if seen.Has(h.id) {
			continue
		}
		seen.Add(h.id)
		cands = append(cands, recommend.Candidate{
			ItemID: h.id,
			Label:  s.cfg.LabelPrefix + ": " + strconv.FormatInt(h.seed, 10),
		})
	}
	return recommend.Single(cands)
}

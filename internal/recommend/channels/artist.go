// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"math/rand"
	"sync"

	"github.com/tomtom215/atelier/internal/recommend"
)

// Artist proposes other works by the artists of recent interactions.
type Artist struct {
	catalog   Catalog
	numArtist int
	rng       *rand.Rand

	mu      sync.Mutex
	artists []string
	lists   [][]int64
}

// NewArtist creates an artist channel. rng shuffles each artist's works on
// every update.
func NewArtist(cat Catalog, numArtist int, rng *rand.Rand) *Artist {
	return &Artist{catalog: cat, numArtist: numArtist, rng: rng}
}

// Name implements recommend.Channel.
func (a *Artist) Name() string { return recommend.ChannelArtist }

// UpdateData selects the distinct artists of the most recent numArtist log
// entries and shuffles their works.
func (a *Artist) UpdateData(_ context.Context, signals recommend.Signals) error {
	var artists []string
	seen := make(map[string]struct{})
	for i, e := range signals.Log {
		if i >= a.numArtist {
			break
		}
		name := a.catalog.Artist(e.ItemID)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		artists = append(artists, name)
	}

	lists := make([][]int64, len(artists))
	for i, name := range artists {
		ids := append([]int64(nil), a.catalog.ItemsByArtist(name)...)
		a.rng.Shuffle(len(ids), func(x, y int) { ids[x], ids[y] = ids[y], ids[x] })
		lists[i] = ids
	}

	a.mu.Lock()
	a.artists, a.lists = artists, lists
	a.mu.Unlock()
	return nil
}

// Produce returns one group per artist with excluded works removed.
func (a *Artist) Produce(_ context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res recommend.ChannelResult
	for i, name := range a.artists {
		ids := filterIDs(a.lists[i], req.Exclude)
		if len(ids) == 0 {
			continue
		}
		group := make([]recommend.Candidate, len(ids))
		for j, id := range ids {
			group[j] = recommend.Candidate{ItemID: id, Label: "Artist: " + name}
		}
		res.Groups = append(res.Groups, group)
	}
	return res, nil
}

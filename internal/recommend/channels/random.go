// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"context"
	"math/rand"

	"github.com/tomtom215/atelier/internal/recommend"
)

// Random draws uniformly from the catalog minus the exclusion set.
type Random struct {
	catalog Catalog
	seed    int64
}

// NewRandom creates a random channel. The generator of each call is seeded
// from seed, the user ID and the request timestamp.
func NewRandom(cat Catalog, seed int64) *Random {
	return &Random{catalog: cat, seed: seed}
}

// Name implements recommend.Channel.
func (r *Random) Name() string { return recommend.ChannelRandom }

// UpdateData implements recommend.Channel.
func (r *Random) UpdateData(context.Context, recommend.Signals) error { return nil }

// Produce returns min(quota, available) items.
func (r *Random) Produce(_ context.Context, req recommend.ProduceRequest) (recommend.ChannelResult, error) {
	pool := filterIDs(r.catalog.IDs(), req.Exclude)
	n := min(req.Quota, len(pool))
	if n <= 0 {
		return recommend.ChannelResult{}, nil
	}

	seed := r.seed ^ recommend.UserSeed(req.UserID)
	seed += req.Timestamp.UnixNano()
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // math/rand is fine for recommendation shuffling

	// Partial Fisher-Yates: only the first n slots are needed.
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	cands := make([]recommend.Candidate, n)
	for i, id := range pool[:n] {
		cands[i] = recommend.Candidate{ItemID: id, Label: "Random"}
	}
	return recommend.Single(cands), nil
}

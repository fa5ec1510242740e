// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package channels

import (
	"errors"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/embedding"
	"github.com/tomtom215/atelier/internal/recommend"
)

// Deps are the shared, read-only resources channels are built from. Every
// field except Catalog is optional; channels whose data is missing are left
// out of the set.
type Deps struct {
	Catalog          Catalog
	ImageIndex       Searcher
	DescriptionIndex Searcher
	Tags             *TagIndex
	Facets           *FacetTable
	Embedder         embedding.Embedder
	Logger           zerolog.Logger
}

// NewFactory returns a recommend.ChannelFactory building per-user channels
// from deps according to cfg.
//
//nolint:gocritic // hugeParam: deps is captured once by the returned closure
func NewFactory(deps Deps, cfg *recommend.Config) recommend.ChannelFactory {
	cfg = cfg.Clone()
	logger := deps.Logger.With().Str("component", "channels").Logger()

	var fixed *FixedTags
	if deps.Catalog != nil && len(cfg.Channels.Tags.FallbackRates) > 0 {
		fixed = NewFixedTags(deps.Catalog, cfg.Channels.Tags.FallbackRates)
	}

	return func(userID string) (recommend.ChannelSet, error) {
		if deps.Catalog == nil {
			return recommend.ChannelSet{}, errors.New("channels: catalog is required")
		}
		rng := rand.New(rand.NewSource(cfg.Seed ^ recommend.UserSeed(userID))) //nolint:gosec // math/rand is fine for recommendation shuffling
		ch := cfg.Channels

		set := recommend.ChannelSet{Random: NewRandom(deps.Catalog, cfg.Seed)}

		if ch.Image.Enabled && deps.ImageIndex != nil {
			set.Personal = append(set.Personal, NewSimilarity(SimilarityConfig{
				Name:        recommend.ChannelImage,
				LabelPrefix: "Image",
				Mode:        PerSeed,
				NumSeeds:    ch.Image.NumImage,
				ShuffleLen:  ch.Image.ShuffleLen,
				SeedCarry:   ch.Image.SeedCarry,
			}, deps.ImageIndex, logger))
		}
		if ch.Description.Enabled && deps.DescriptionIndex != nil {
			set.Personal = append(set.Personal, NewSimilarity(SimilarityConfig{
				Name:        recommend.ChannelDescription,
				LabelPrefix: "Description",
				Mode:        Merged,
				NumSeeds:    ch.Description.NumSeeds,
				SeedCarry:   ch.Description.SeedCarry,
			}, deps.DescriptionIndex, logger))
		}
		if ch.Artist.Enabled {
			set.Personal = append(set.Personal, NewArtist(deps.Catalog, ch.Artist.NumArtist, rng))
		}
		if ch.Tags.Enabled {
			set.Personal = append(set.Personal, withFallback(NewTags(deps.Catalog, ch.Tags.NumTag, ch.Tags.TagLogLen), fixed))
		}
		if ch.TypedTags.Enabled {
			typed := NewTypedTags(deps.Catalog, TypedTagsConfig{
				Alpha:  ch.TypedTags.Alpha,
				NumTag: ch.TypedTags.NumTag,
				LogLen: ch.TypedTags.TagLogLen,
			})
			set.Personal = append(set.Personal, withFallback(typed, fixed))
		}
		if ch.Profile.Enabled && deps.Tags != nil {
			set.Personal = append(set.Personal, NewProfile(deps.Catalog, deps.Tags))
		}
		if ch.ColdStart.Enabled && deps.Facets != nil && deps.Embedder != nil {
			cold, err := NewColdStart(deps.Facets, deps.Embedder, ch.ColdStart)
			if err != nil {
				return recommend.ChannelSet{}, err
			}
			set.ColdStart = cold
		}
		return set, nil
	}
}

func withFallback(primary recommend.Channel, fallback *FixedTags) recommend.Channel {
	if fallback == nil {
		return primary
	}
	return NewChain(primary, fallback)
}

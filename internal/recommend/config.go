// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"fmt"
	"maps"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// PageQuota is the number of items per page.
	// Default: 40.
	PageQuota int `json:"page_quota" koanf:"page_quota"`

	// NumInteracted caps the interacted set written on each update.
	// Default: 50.
	NumInteracted int `json:"num_interacted" koanf:"num_interacted"`

	// NumRecommended is the capacity of the recommended window.
	// Default: 200.
	NumRecommended int `json:"num_recommended" koanf:"num_recommended"`

	// Seed is mixed into every per-user random generator.
	// Default: 42.
	Seed int64 `json:"seed" koanf:"seed"`

	// Blender contains page assembly parameters.
	Blender BlenderConfig `json:"blender" koanf:"blender"`

	// Channels contains per-channel parameters.
	Channels ChannelsConfig `json:"channels" koanf:"channels"`

	// Sessions contains session registry parameters.
	Sessions SessionConfig `json:"sessions" koanf:"sessions"`

	// Breaker contains per-channel circuit breaker parameters.
	Breaker BreakerConfig `json:"breaker" koanf:"breaker"`
}

// BlenderConfig contains page assembly parameters.
type BlenderConfig struct {
	// Parallel produces channels concurrently.
	// Default: false.
	Parallel bool `json:"parallel" koanf:"parallel"`

	// LogisticSquash maps every weight w to 1/(1+exp(-w)).
	// Default: false.
	LogisticSquash bool `json:"logistic_squash" koanf:"logistic_squash"`

	// PageBudget is the wall-clock budget of one page.
	// Default: 2s.
	PageBudget time.Duration `json:"page_budget" koanf:"page_budget"`

	// ChannelTimeout bounds a single channel produce call.
	// Default: 1s.
	ChannelTimeout time.Duration `json:"channel_timeout" koanf:"channel_timeout"`
}

// ChannelsConfig contains per-channel parameters.
type ChannelsConfig struct {
	Image       ImageConfig       `json:"image" koanf:"image"`
	Description DescriptionConfig `json:"description" koanf:"description"`
	Artist      ArtistConfig      `json:"artist" koanf:"artist"`
	Tags        TagsConfig        `json:"tags" koanf:"tags"`
	TypedTags   TypedTagsConfig   `json:"typed_tags" koanf:"typed_tags"`
	Profile     ProfileConfig     `json:"profile" koanf:"profile"`
	ColdStart   ColdStartConfig   `json:"cold_start" koanf:"cold_start"`
}

// ImageConfig configures the per-seed image similarity channel.
type ImageConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// NumImage is the number of recent interactions used as seeds.
	// Default: 8.
	NumImage int `json:"num_image" koanf:"num_image"`

	// ShuffleLen is the number of nearest results shuffled per seed.
	// Default: 20.
	ShuffleLen int `json:"shuffle_len" koanf:"shuffle_len"`

	// SeedCarry is the number of produced candidates kept as next seeds.
	// Default: 40.
	SeedCarry int `json:"seed_carry" koanf:"seed_carry"`
}

// DescriptionConfig configures the merged description similarity channel.
type DescriptionConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// NumSeeds is the number of recent interactions used as seeds.
	// Default: 8.
	NumSeeds int `json:"num_seeds" koanf:"num_seeds"`

	// SeedCarry is the number of produced candidates kept as next seeds.
	// Default: 40.
	SeedCarry int `json:"seed_carry" koanf:"seed_carry"`
}

// ArtistConfig configures the same-artist channel.
type ArtistConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// NumArtist is the number of recent interactions whose artists seed the channel.
	// Default: 8.
	NumArtist int `json:"num_artist" koanf:"num_artist"`
}

// TagsConfig configures the common-tags channel.
type TagsConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// NumTag is the number of top tags selected.
	// Default: 8.
	NumTag int `json:"num_tag" koanf:"num_tag"`

	// TagLogLen is the trailing window of unique log entries.
	// Default: 20.
	TagLogLen int `json:"tag_log_len" koanf:"tag_log_len"`

	// FallbackRates drive the fixed-rate tag channel used when the tag
	// channel yields nothing.
	// Default: Nature 0.9, Realism 0.5.
	FallbackRates map[string]float64 `json:"fallback_rates" koanf:"fallback_rates"`
}

// TypedTagsConfig configures the typed-tags channel.
type TypedTagsConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// Alpha blends tag rate and tag-type rate: alpha*tag + (1-alpha)*type.
	// Default: 0.7.
	Alpha float64 `json:"alpha" koanf:"alpha"`

	// NumTag is the number of top tags selected.
	// Default: 8.
	NumTag int `json:"num_tag" koanf:"num_tag"`

	// TagLogLen is the trailing window of unique log entries.
	// Default: 20.
	TagLogLen int `json:"tag_log_len" koanf:"tag_log_len"`
}

// ProfileConfig configures the survey profile channel.
type ProfileConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`
}

// ColdStartConfig configures the cold-start channel.
type ColdStartConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// TopK is the size of a cold-start page.
	// Default: 55.
	TopK int `json:"top_k" koanf:"top_k"`

	// Similarity is one of cosine, neg_l1, dot.
	// Default: cosine.
	Similarity string `json:"similarity" koanf:"similarity"`

	// Weights of the artist, style, theme and movement facets.
	// Default: 0.1/0.3/0.3/0.3.
	Weights FacetWeights `json:"weights" koanf:"weights"`
}

// FacetWeights weighs the four cold-start facets.
type FacetWeights struct {
	Artist   float64 `json:"artist" koanf:"artist"`
	Style    float64 `json:"style" koanf:"style"`
	Theme    float64 `json:"theme" koanf:"theme"`
	Movement float64 `json:"movement" koanf:"movement"`
}

// Sum returns the total weight.
func (w FacetWeights) Sum() float64 {
	return w.Artist + w.Style + w.Theme + w.Movement
}

// SessionConfig contains session registry parameters.
type SessionConfig struct {
	// MaxSessions is the capacity of the in-memory session registry.
	// Default: 10000.
	MaxSessions int `json:"max_sessions" koanf:"max_sessions"`

	// PersistTimeout bounds persisting one evicted session.
	// Default: 5s.
	PersistTimeout time.Duration `json:"persist_timeout" koanf:"persist_timeout"`
}

// BreakerConfig contains per-channel circuit breaker parameters.
type BreakerConfig struct {
	// FailureThreshold opens a channel breaker after this many consecutive failures.
	// Default: 3.
	FailureThreshold uint32 `json:"failure_threshold" koanf:"failure_threshold"`

	// OpenTimeout is how long an open breaker rejects calls.
	// Default: 30s.
	OpenTimeout time.Duration `json:"open_timeout" koanf:"open_timeout"`
}

// Similarity measures for the cold-start channel.
const (
	SimilarityCosine = "cosine"
	SimilarityNegL1  = "neg_l1"
	SimilarityDot    = "dot"
)

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		PageQuota:      40,
		NumInteracted:  50,
		NumRecommended: 200,
		Seed:           42,
		Blender: BlenderConfig{
			Parallel:       false,
			LogisticSquash: false,
			PageBudget:     2 * time.Second,
			ChannelTimeout: time.Second,
		},
		Channels: ChannelsConfig{
			Image: ImageConfig{
				Enabled:    true,
				NumImage:   8,
				ShuffleLen: 20,
				SeedCarry:  40,
			},
			Description: DescriptionConfig{
				Enabled:   false,
				NumSeeds:  8,
				SeedCarry: 40,
			},
			Artist: ArtistConfig{
				Enabled:   true,
				NumArtist: 8,
			},
			Tags: TagsConfig{
				Enabled:       true,
				NumTag:        8,
				TagLogLen:     20,
				FallbackRates: map[string]float64{"Nature": 0.9, "Realism": 0.5},
			},
			TypedTags: TypedTagsConfig{
				Enabled:   false,
				Alpha:     0.7,
				NumTag:    8,
				TagLogLen: 20,
			},
			Profile: ProfileConfig{
				Enabled: true,
			},
			ColdStart: ColdStartConfig{
				Enabled:    true,
				TopK:       55,
				Similarity: SimilarityCosine,
				Weights:    FacetWeights{Artist: 0.1, Style: 0.3, Theme: 0.3, Movement: 0.3},
			},
		},
		Sessions: SessionConfig{
			MaxSessions:    10000,
			PersistTimeout: 5 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.PageQuota < 1 {
		return fmt.Errorf("page_quota must be positive, got %d", c.PageQuota)
	}
	if c.NumInteracted < 0 {
		return fmt.Errorf("num_interacted must be non-negative, got %d", c.NumInteracted)
	}
	if c.NumRecommended < 0 {
		return fmt.Errorf("num_recommended must be non-negative, got %d", c.NumRecommended)
	}

	if c.Blender.PageBudget <= 0 {
		return fmt.Errorf("blender.page_budget must be positive, got %v", c.Blender.PageBudget)
	}
	if c.Blender.ChannelTimeout <= 0 {
		return fmt.Errorf("blender.channel_timeout must be positive, got %v", c.Blender.ChannelTimeout)
	}

	ch := c.Channels
	if ch.Image.Enabled {
		if ch.Image.NumImage < 1 {
			return fmt.Errorf("channels.image.num_image must be positive, got %d", ch.Image.NumImage)
		}
		if ch.Image.ShuffleLen < 0 {
			return fmt.Errorf("channels.image.shuffle_len must be non-negative, got %d", ch.Image.ShuffleLen)
		}
		if ch.Image.SeedCarry < 1 {
			return fmt.Errorf("channels.image.seed_carry must be positive, got %d", ch.Image.SeedCarry)
		}
	}
	if ch.Description.Enabled {
		if ch.Description.NumSeeds < 1 {
			return fmt.Errorf("channels.description.num_seeds must be positive, got %d", ch.Description.NumSeeds)
		}
		if ch.Description.SeedCarry < 1 {
			return fmt.Errorf("channels.description.seed_carry must be positive, got %d", ch.Description.SeedCarry)
		}
	}
	if ch.Artist.Enabled && ch.Artist.NumArtist < 1 {
		return fmt.Errorf("channels.artist.num_artist must be positive, got %d", ch.Artist.NumArtist)
	}
	if ch.Tags.Enabled {
		if ch.Tags.NumTag < 1 {
			return fmt.Errorf("channels.tags.num_tag must be positive, got %d", ch.Tags.NumTag)
		}
		if ch.Tags.TagLogLen < 1 {
			return fmt.Errorf("channels.tags.tag_log_len must be positive, got %d", ch.Tags.TagLogLen)
		}
		for tag, rate := range ch.Tags.FallbackRates {
			if rate < 0 {
				return fmt.Errorf("channels.tags.fallback_rates[%s] must be non-negative, got %f", tag, rate)
			}
		}
	}
	if ch.TypedTags.Enabled {
		if ch.TypedTags.Alpha < 0 || ch.TypedTags.Alpha > 1 {
			return fmt.Errorf("channels.typed_tags.alpha must be in [0, 1], got %f", ch.TypedTags.Alpha)
		}
		if ch.TypedTags.NumTag < 1 {
			return fmt.Errorf("channels.typed_tags.num_tag must be positive, got %d", ch.TypedTags.NumTag)
		}
		if ch.TypedTags.TagLogLen < 1 {
			return fmt.Errorf("channels.typed_tags.tag_log_len must be positive, got %d", ch.TypedTags.TagLogLen)
		}
	}
	if ch.ColdStart.Enabled {
		if ch.ColdStart.TopK < 1 {
			return fmt.Errorf("channels.cold_start.top_k must be positive, got %d", ch.ColdStart.TopK)
		}
		switch ch.ColdStart.Similarity {
		case SimilarityCosine, SimilarityNegL1, SimilarityDot:
		default:
			return fmt.Errorf("channels.cold_start.similarity must be one of cosine, neg_l1, dot, got %q", ch.ColdStart.Similarity)
		}
		w := ch.ColdStart.Weights
		if w.Artist < 0 || w.Style < 0 || w.Theme < 0 || w.Movement < 0 {
			return fmt.Errorf("channels.cold_start.weights must be non-negative, got %+v", w)
		}
		if w.Sum() <= 0 {
			return fmt.Errorf("channels.cold_start.weights must not all be zero")
		}
	}

	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.PersistTimeout <= 0 {
		return fmt.Errorf("sessions.persist_timeout must be positive, got %v", c.Sessions.PersistTimeout)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker.open_timeout must be positive, got %v", c.Breaker.OpenTimeout)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Channels.Tags.FallbackRates = maps.Clone(c.Channels.Tags.FallbackRates)
	return &out
}

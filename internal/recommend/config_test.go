// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero page quota", func(c *Config) { c.PageQuota = 0 }, "page_quota"},
		{"negative num_interacted", func(c *Config) { c.NumInteracted = -1 }, "num_interacted"},
		{"negative num_recommended", func(c *Config) { c.NumRecommended = -1 }, "num_recommended"},
		{"zero page budget", func(c *Config) { c.Blender.PageBudget = 0 }, "page_budget"},
		{"zero num_image", func(c *Config) { c.Channels.Image.NumImage = 0 }, "num_image"},
		{"negative shuffle_len", func(c *Config) { c.Channels.Image.ShuffleLen = -1 }, "shuffle_len"},
		{"zero num_artist", func(c *Config) { c.Channels.Artist.NumArtist = 0 }, "num_artist"},
		{"zero num_tag", func(c *Config) { c.Channels.Tags.NumTag = 0 }, "num_tag"},
		{"negative fallback rate", func(c *Config) { c.Channels.Tags.FallbackRates["Nature"] = -0.1 }, "fallback_rates"},
		{"alpha out of range", func(c *Config) {
			c.Channels.TypedTags.Enabled = true
			c.Channels.TypedTags.Alpha = 1.5
		}, "alpha"},
		{"unknown similarity", func(c *Config) { c.Channels.ColdStart.Similarity = "euclid" }, "similarity"},
		{"zero facet weights", func(c *Config) { c.Channels.ColdStart.Weights = FacetWeights{} }, "weights"},
		{"negative facet weight", func(c *Config) { c.Channels.ColdStart.Weights.Artist = -1 }, "weights"},
		{"zero sessions", func(c *Config) { c.Sessions.MaxSessions = 0 }, "max_sessions"},
		{"zero breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "failure_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DisabledChannelsSkipValidation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Channels.Image.Enabled = false
	cfg.Channels.Image.NumImage = 0
	cfg.Channels.ColdStart.Enabled = false
	cfg.Channels.ColdStart.Similarity = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Channels.Tags.FallbackRates["Nature"] = 0.1
	clone.PageQuota = 3

	if cfg.Channels.Tags.FallbackRates["Nature"] != 0.9 {
		t.Error("Clone() shares the fallback rate map")
	}
	if cfg.PageQuota != 40 {
		t.Error("Clone() shares scalar fields")
	}
}

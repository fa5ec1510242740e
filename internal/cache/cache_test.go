// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package cache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	c := New[[]float32](time.Minute, time.Minute)
	defer c.Close()

	c.Set("a", []float32{1, 2})

	got, ok := c.Get("a")
	if !ok || len(got) != 2 {
		t.Fatalf("Get(a) = %v, %v; want 2-element vector", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
	if rate := c.HitRate(); rate != 50 {
		t.Errorf("HitRate() = %f, want 50", rate)
	}
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	c := New[string](time.Minute, time.Minute)
	defer c.Close()

	c.SetWithTTL("short", "v", -time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired read", c.Len())
	}
}

func TestCache_Cleanup(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute, time.Minute)
	defer c.Close()

	c.SetWithTTL("old", 1, -time.Second)
	c.Set("new", 2)
	c.cleanup()

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if got := c.GetStats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	a := Key("embed", "model", "Impressionism")
	b := Key("embed", "model", "Impressionism")
	c := Key("embed", "modelImpressionism")

	if a != b {
		t.Error("Key should be deterministic")
	}
	if a == c {
		t.Error("Key should separate parts")
	}
}

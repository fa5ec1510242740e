// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package embedding

import (
	"context"
	"time"

	"github.com/tomtom215/atelier/internal/cache"
	"github.com/tomtom215/atelier/internal/metrics"
)

// Cached wraps an Embedder with a TTL cache keyed by model and text.
// Missing vectors (nil) are not cached.
type Cached struct {
	inner Embedder
	cache *cache.Cache[[]float32]
}

// NewCached wraps inner. Call Close to stop the cache cleanup goroutine.
func NewCached(inner Embedder, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: cache.New[[]float32](ttl, ttl/2),
	}
}

// Embed implements Embedder. Only cache misses reach the wrapped embedder.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			out[i] = v
			metrics.RecordEmbeddingCache(true)
			continue
		}
		metrics.RecordEmbeddingCache(false)
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		if j >= len(missIdx) {
			break
		}
		out[missIdx[j]] = v
		if v != nil {
			c.cache.Set(c.key(missTexts[j]), v)
		}
	}
	return out, nil
}

// Dimensions implements Embedder.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Model implements Embedder.
func (c *Cached) Model() string { return c.inner.Model() }

// HitRate returns the cache hit rate in percent.
func (c *Cached) HitRate() float64 { return c.cache.HitRate() }

// Close stops the cache.
func (c *Cached) Close() { c.cache.Close() }

func (c *Cached) key(text string) string {
	return cache.Key("embedding", c.inner.Model(), text)
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package recommend implements multi-channel artwork recommendation pages.
//
// # Architecture
//
// Independent candidate channels (image similarity, description similarity,
// shared tags, shared artist, survey profile, cold start, random) each propose
// ordered candidate groups. The Blender draws a page from those groups with a
// weighted lottery:
//
//   - each group of a channel that returned n groups weighs 1/max(1, n)
//   - the random channel weighs (1/len(random)) * engagement counter
//   - every inspected candidate advances its group cursor, so the draw ends
//     when the quota is met or every group is exhausted
//
// Candidates in the exclusion set (interacted items plus the recommended
// window) or already picked for the page are skipped at draw time even though
// channels pre-filter them.
//
// # Sessions
//
// The Engine keeps one Session per user in a bounded LRU registry. A session
// owns the user's channels, blender, recommended window and engagement
// counter, and serializes all work for that user behind a mutex. Evicted
// sessions are persisted through the configured StateStore once their
// in-flight work finishes; lookups for that user wait for the save instead of
// reloading stale state. A page that fails leaves the window and engagement
// counter unchanged.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, factory, logger,
//	    recommend.WithStateStore(store),
//	    recommend.WithInteractionStore(store),
//	    recommend.WithInteractedStore(files),
//	)
//
//	_ = engine.RecordInteractions(ctx, "42", entries)
//	page, err := engine.Recommend(ctx, recommend.PageRequest{UserID: "42"})
//
// # Failure Semantics
//
// A failing channel, or one whose circuit breaker is open, contributes
// nothing to the page and is listed in Page.Degraded. A page that runs past
// its wall-clock budget is rebuilt from the random channel alone and flagged
// Fallback. Pages shorter than the quota are valid results, flagged Short.
package recommend

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package channels contains the candidate channels used by the recommend
// engine and the factory that assembles them per user.
//
// Channels:
//
//   - Similarity: nearest neighbors of seed items in an embedding index, one
//     group per seed (image) or one merged group (description)
//   - Artist: other works by recently interacted artists
//   - Tags, TypedTags, FixedTags: works sharing high click-rate tags
//   - Profile: works carrying tags near the user's survey answers
//   - ColdStart: facet-embedding match against survey preferences
//   - Random: uniform draw from the catalog
//
// Chain wraps a primary channel with fallbacks that are consulted only when
// the primary yields nothing.
package channels

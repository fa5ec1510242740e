// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/tomtom215/atelier/internal/interactions"
)

// StateStore persists session state.
type StateStore interface {
	// LoadSession returns nil, nil when no state exists for userID.
	LoadSession(ctx context.Context, userID string) (*SessionState, error)
	SaveSession(ctx context.Context, state *SessionState) error
}

// InteractionStore persists per-user interaction logs.
type InteractionStore interface {
	AppendInteractions(ctx context.Context, userID string, entries []interactions.Entry) error
	LoadInteractions(ctx context.Context, userID string) ([]interactions.Entry, error)
}

// InteractedStore persists the capped per-user interacted set.
type InteractedStore interface {
	WriteInteracted(ctx context.Context, userID string, ids []int64) error
	ReadInteracted(ctx context.Context, userID string) ([]int64, error)
}

// Session is the per-user recommendation state. All access goes through mu.
type Session struct {
	mu sync.Mutex

	userID     string
	blender    *Blender
	log        *interactions.Log
	interacted ItemSet
	prefs      Preferences
	rng        *rand.Rand

	// pending is set when interactions arrived since the last page.
	pending         bool
	coldStartServed bool
	pages           int
	dirty           bool
	updatedAt       time.Time

	// evicted is set once the session left the registry; holders of a stale
	// pointer must look the user up again.
	evicted bool
}

func newSession(userID string, blender *Blender, seed int64) *Session {
	return &Session{
		userID:     userID,
		blender:    blender,
		log:        interactions.NewLog(),
		interacted: make(ItemSet),
		rng:        rand.New(rand.NewSource(seed ^ UserSeed(userID))), //nolint:gosec // math/rand is fine for recommendation shuffling
	}
}

// UserSeed hashes a user ID into a generator seed.
func UserSeed(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64() >> 1)
}

// coldMode reports whether the next page should come from the cold-start
// channel: preferences are set but nothing was interacted with yet.
func (s *Session) coldMode() bool {
	return s.log.Len() == 0 && s.prefs.HasFacets() && s.blender.HasColdStart()
}

// snapshot captures the persisted state. Caller holds mu.
func (s *Session) snapshot() *SessionState {
	return &SessionState{
		UserID:          s.userID,
		Window:          s.blender.Window().IDs(),
		Engagement:      s.blender.Engagement().Count(),
		Seeds:           s.blender.Seeds(),
		Preferences:     s.prefs,
		Interacted:      s.interacted.Sorted(),
		ColdStartServed: s.coldStartServed,
		Pages:           s.pages,
		UpdatedAt:       s.updatedAt,
	}
}

// restore applies persisted state. Caller holds mu.
func (s *Session) restore(st *SessionState) {
	s.blender.Restore(st.Window, st.Engagement)
	s.prefs = st.Preferences
	s.interacted = NewItemSet(st.Interacted...)
	s.coldStartServed = st.ColdStartServed
	s.pages = st.Pages
	s.updatedAt = st.UpdatedAt
}

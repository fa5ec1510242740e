// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/tomtom215/atelier/internal/interactions"
)

// Sentinel errors.
var (
	// ErrUnknownUser is returned when no session or stored state exists for a user.
	ErrUnknownUser = errors.New("recommend: unknown user")

	// ErrNoChannels is returned when a channel set has no random channel.
	ErrNoChannels = errors.New("recommend: no channels configured")
)

// Channel names used for provenance and metrics.
const (
	ChannelRandom      = "random"
	ChannelImage       = "image"
	ChannelDescription = "description"
	ChannelArtist      = "artist"
	ChannelTags        = "tags"
	ChannelTypedTags   = "typed_tags"
	ChannelProfile     = "profile"
	ChannelColdStart   = "cold_start"
)

// Channel is a pluggable candidate-generation strategy.
//
// UpdateData is called whenever the user's interaction log or preferences
// change. Produce is called once per page request and must never return an
// item in req.Exclude. Returning fewer candidates than req.Quota is valid.
type Channel interface {
	Name() string
	UpdateData(ctx context.Context, signals Signals) error
	Produce(ctx context.Context, req ProduceRequest) (ChannelResult, error)
}

// SeedHolder is implemented by channels whose seed list survives restarts.
type SeedHolder interface {
	Seeds() []int64
	RestoreSeeds(seeds []int64)
}

// Candidate is one proposed item with its provenance label.
type Candidate struct {
	ItemID int64  `json:"item_id"`
	Label  string `json:"label"`
}

// ChannelResult holds the ordered candidate groups of one channel call.
// Channels with one list per seed return one group per seed.
type ChannelResult struct {
	Groups [][]Candidate
}

// Single wraps one candidate list as a result.
func Single(cands []Candidate) ChannelResult {
	if len(cands) == 0 {
		return ChannelResult{}
	}
	return ChannelResult{Groups: [][]Candidate{cands}}
}

// Len returns the total number of candidates across groups.
func (r ChannelResult) Len() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g)
	}
	return n
}

// Flatten concatenates all groups in order.
func (r ChannelResult) Flatten() []Candidate {
	out := make([]Candidate, 0, r.Len())
	for _, g := range r.Groups {
		out = append(out, g...)
	}
	return out
}

// ItemIDs returns the candidate IDs of all groups in order.
func (r ChannelResult) ItemIDs() []int64 {
	out := make([]int64, 0, r.Len())
	for _, g := range r.Groups {
		for _, c := range g {
			out = append(out, c.ItemID)
		}
	}
	return out
}

// ItemSet is a set of item IDs.
type ItemSet map[int64]struct{}

// NewItemSet builds a set from ids.
func NewItemSet(ids ...int64) ItemSet {
	s := make(ItemSet, len(ids))
	s.Add(ids...)
	return s
}

// Add inserts ids.
func (s ItemSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set. A nil set is empty.
func (s ItemSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set holding s and every other set.
func (s ItemSet) Union(others ...ItemSet) ItemSet {
	n := len(s)
	for _, o := range others {
		n += len(o)
	}
	out := make(ItemSet, n)
	for id := range s {
		out[id] = struct{}{}
	}
	for _, o := range others {
		for id := range o {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s ItemSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Preferences are survey answers used for cold start and profile channels.
type Preferences struct {
	Artists   []string `json:"artists,omitempty" validate:"max=50,dive,max=200"`
	Styles    []string `json:"styles,omitempty" validate:"max=50,dive,max=200"`
	Themes    []string `json:"themes,omitempty" validate:"max=50,dive,max=200"`
	Movements []string `json:"movements,omitempty" validate:"max=50,dive,max=200"`

	// Survey maps a tag type (style, theme, movement) to the chosen tag.
	Survey map[string]string `json:"survey,omitempty" validate:"max=20"`
}

// HasFacets reports whether any cold-start facet is set.
func (p Preferences) HasFacets() bool {
	return len(p.Artists)+len(p.Styles)+len(p.Themes)+len(p.Movements) > 0
}

// IsZero reports whether no preference is set.
func (p Preferences) IsZero() bool {
	return !p.HasFacets() && len(p.Survey) == 0
}

// Signals is the state handed to Channel.UpdateData.
type Signals struct {
	UserID string

	// Log holds one entry per interacted item, most recent first.
	Log []interactions.Entry

	// Interacted is the capped interacted set written for this update.
	Interacted ItemSet

	Preferences Preferences
	Timestamp   time.Time
}

// ProduceRequest is the per-call input of Channel.Produce.
type ProduceRequest struct {
	UserID    string
	Exclude   ItemSet
	Timestamp time.Time
	Quota     int

	// Rand is a generator private to this channel call.
	Rand *rand.Rand

	// DefaultSeeds are used by seed-based channels without history.
	DefaultSeeds []int64

	// FirstColdStart is set on the first cold-start page of a session.
	FirstColdStart bool
}

// PageRequest is the ephemeral context of one page request.
type PageRequest struct {
	UserID          string    `json:"user_id" validate:"required,max=128"`
	Timestamp       time.Time `json:"timestamp"`
	BehaviorUpdated bool      `json:"behavior_updated"`
	PageIndex       int       `json:"page_index" validate:"min=0"`
	RequestID       string    `json:"request_id,omitempty"`
}

// PageItem is one recommended item with provenance.
type PageItem struct {
	ItemID  int64   `json:"item_id"`
	Label   string  `json:"label"`
	Channel string  `json:"channel"`
	Weight  float64 `json:"weight"`
}

// Page is a ranked recommendation page. An empty page is a valid result.
type Page struct {
	RequestID string     `json:"request_id"`
	UserID    string     `json:"user_id"`
	PageIndex int        `json:"page_index"`
	Items     []PageItem `json:"items"`

	// Short is set when fewer than the quota could be drawn.
	Short bool `json:"short"`

	// Fallback is set when the page was rebuilt from the random channel alone.
	Fallback bool `json:"fallback"`

	// ColdStart is set when the page came from the cold-start channel.
	ColdStart bool `json:"cold_start"`

	// Degraded lists channels that failed or were rejected for this page.
	Degraded []string `json:"degraded,omitempty"`

	EngagementCounter int       `json:"engagement_counter"`
	LatencyMS         int64     `json:"latency_ms"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// ItemIDs returns the page item IDs in rank order.
func (p *Page) ItemIDs() []int64 {
	out := make([]int64, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.ItemID
	}
	return out
}

// SessionState is the persisted part of a session.
type SessionState struct {
	UserID          string             `json:"user_id"`
	Window          []int64            `json:"window"`
	Engagement      int                `json:"engagement"`
	Seeds           map[string][]int64 `json:"seeds,omitempty"`
	Preferences     Preferences        `json:"preferences"`
	Interacted      []int64            `json:"interacted,omitempty"`
	ColdStartServed bool               `json:"cold_start_served"`
	Pages           int                `json:"pages"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// EngineStatus reports engine-level counters.
type EngineStatus struct {
	Sessions       int               `json:"sessions"`
	PagesServed    int64             `json:"pages_served"`
	ShortPages     int64             `json:"short_pages"`
	FallbackPages  int64             `json:"fallback_pages"`
	ColdStartPages int64             `json:"cold_start_pages"`
	ChannelErrors  int64             `json:"channel_errors"`
	Interactions   int64             `json:"interactions"`
	Breakers       map[string]string `json:"breakers"`
	StartedAt      time.Time         `json:"started_at"`
}

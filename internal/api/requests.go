// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"time"

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/recommend"
)

// PageQuery holds the query parameters of the page endpoints.
type PageQuery struct {
	UserID          string `json:"user_id" validate:"required,max=128,userid"`
	Page            int    `json:"page" validate:"min=0,max=100000"`
	BehaviorUpdated bool   `json:"behavior_updated"`
}

// InteractionItem is one interaction in a POST body. A zero timestamp is
// stamped with the receive time.
type InteractionItem struct {
	ItemID    int64     `json:"item_id" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionsRequest is the body of POST /users/{userID}/interactions.
type InteractionsRequest struct {
	Items []InteractionItem `json:"items" validate:"required,min=1,max=500,dive"`
}

// Entries converts the request to interaction log entries.
func (r *InteractionsRequest) Entries(now time.Time) []interactions.Entry {
	out := make([]interactions.Entry, len(r.Items))
	for i, it := range r.Items {
		ts := it.Timestamp
		if ts.IsZero() {
			ts = now
		}
		out[i] = interactions.Entry{ItemID: it.ItemID, Timestamp: ts.UTC()}
	}
	return out
}

// PreferencesRequest is the body of PUT /users/{userID}/preferences.
type PreferencesRequest struct {
	Artists   []string `json:"artists" validate:"max=50,dive,required,max=200"`
	Styles    []string `json:"styles" validate:"max=50,dive,required,max=200"`
	Themes    []string `json:"themes" validate:"max=50,dive,required,max=200"`
	Movements []string `json:"movements" validate:"max=50,dive,required,max=200"`

	// Survey maps a tag type to the chosen tag.
	Survey map[string]string `json:"survey" validate:"max=20,dive,keys,tagtype,endkeys,required,max=200"`
}

// Preferences converts the request to engine preferences.
func (r *PreferencesRequest) Preferences() recommend.Preferences {
	return recommend.Preferences{
		Artists:   r.Artists,
		Styles:    r.Styles,
		Themes:    r.Themes,
		Movements: r.Movements,
		Survey:    r.Survey,
	}
}

// InteractionsAccepted is the 202 response body.
type InteractionsAccepted struct {
	UserID   string `json:"user_id"`
	Accepted int    `json:"accepted"`
	Queued   bool   `json:"queued"`
}

// StateView summarizes a user's session.
type StateView struct {
	UserID          string                `json:"user_id"`
	WindowSize      int                   `json:"window_size"`
	Window          []int64               `json:"window"`
	Engagement      int                   `json:"engagement"`
	InteractedCount int                   `json:"interacted_count"`
	Pages           int                   `json:"pages"`
	ColdStartServed bool                  `json:"cold_start_served"`
	Preferences     recommend.Preferences `json:"preferences"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newStateView(st *recommend.SessionState) StateView {
	return StateView{
		UserID:          st.UserID,
		WindowSize:      len(st.Window),
		Window:          st.Window,
		Engagement:      st.Engagement,
		InteractedCount: len(st.Interacted),
		Pages:           st.Pages,
		ColdStartServed: st.ColdStartServed,
		Preferences:     st.Preferences,
		UpdatedAt:       st.UpdatedAt,
	}
}

// StatusView is the body of GET /api/v1/status.
type StatusView struct {
	recommend.EngineStatus
	CatalogItems  int    `json:"catalog_items"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version,omitempty"`
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/atelier/internal/interactions"
)

// SchemaVersion is the current InteractionRecorded schema version.
const SchemaVersion = 1

// DefaultTopic is the topic interactions are published on.
const DefaultTopic = "atelier.interactions"

// ErrInvalidEvent is returned for events that can never be applied.
var ErrInvalidEvent = errors.New("invalid event")

// InteractionRecorded is published once per interacted item.
type InteractionRecorded struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	UserID        string    `json:"user_id"`
	ItemID        int64     `json:"item_id"`
	Timestamp     time.Time `json:"timestamp"`

	// Source names the producer (api, kiosk, import).
	Source string `json:"source,omitempty"`
}

// NewInteractionRecorded builds an event with a fresh ID.
func NewInteractionRecorded(userID string, entry interactions.Entry, source string) *InteractionRecorded {
	return &InteractionRecorded{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		UserID:        userID,
		ItemID:        entry.ItemID,
		Timestamp:     entry.Timestamp.UTC(),
		Source:        source,
	}
}

// Validate checks required fields.
func (e *InteractionRecorded) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	case e.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	case e.ItemID < 0:
		return fmt.Errorf("%w: item_id must not be negative", ErrInvalidEvent)
	case e.SchemaVersion > SchemaVersion:
		return fmt.Errorf("%w: unsupported schema version %d", ErrInvalidEvent, e.SchemaVersion)
	}
	return nil
}

// Entry converts the event to an interaction log entry.
func (e *InteractionRecorded) Entry() interactions.Entry {
	return interactions.Entry{ItemID: e.ItemID, Timestamp: e.Timestamp}
}

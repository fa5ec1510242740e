// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/wal"
)

// Outbox persists event batches until they are published.
type Outbox interface {
	WriteClaimed(ctx context.Context, event any) (string, error)
	Confirm(ctx context.Context, entryID string) error
	UpdateAttempt(ctx context.Context, entryID, lastError string) error
	ReleaseEntry(entryID string)
}

// Batch is the outbox payload of one accepted request.
type Batch struct {
	Events []*InteractionRecorded `json:"events"`
}

// DurablePublisher writes every batch to an outbox before publishing it.
// Once the write succeeds the batch is accepted: a failed publish is left for
// the outbox retry loop.
type DurablePublisher struct {
	publisher *Publisher
	outbox    Outbox
	logger    zerolog.Logger
}

// NewDurablePublisher wraps pub with outbox.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewDurablePublisher(pub *Publisher, outbox Outbox, logger zerolog.Logger) *DurablePublisher {
	return &DurablePublisher{
		publisher: pub,
		outbox:    outbox,
		logger:    logger.With().Str("component", "durable_publisher").Logger(),
	}
}

// PublishInteractions persists then publishes. It fails only when the batch
// could not be made durable.
func (d *DurablePublisher) PublishInteractions(ctx context.Context, userID string, entries []interactions.Entry) error {
	evs := d.publisher.NewEvents(userID, entries)
	id, err := d.outbox.WriteClaimed(ctx, Batch{Events: evs})
	if err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	defer d.outbox.ReleaseEntry(id)

	// The batch is durable; bookkeeping must not be cut short by the caller.
	bg := context.WithoutCancel(ctx)
	if err := d.publisher.PublishEvents(ctx, evs); err != nil {
		d.logger.Warn().
			Err(err).
			Str("entry_id", id).
			Str("user_id", userID).
			Msg("Publish failed, batch left in outbox")
		if uerr := d.outbox.UpdateAttempt(bg, id, err.Error()); uerr != nil {
			d.logger.Error().Err(uerr).Str("entry_id", id).Msg("Failed to record outbox attempt")
		}
		return nil
	}

	if err := d.outbox.Confirm(bg, id); err != nil {
		// Replay is harmless: the consumer deduplicates on event ID.
		d.logger.Warn().Err(err).Str("entry_id", id).Msg("Failed to confirm outbox entry")
	}
	return nil
}

// PublishEntry replays one outbox entry with its original event IDs.
func (d *DurablePublisher) PublishEntry(ctx context.Context, entry *wal.Entry) error {
	var b Batch
	if err := entry.UnmarshalPayload(&b); err != nil {
		return fmt.Errorf("%w: outbox entry %s: %w", ErrInvalidEvent, entry.ID, err)
	}
	return d.publisher.PublishEvents(ctx, b.Events)
}

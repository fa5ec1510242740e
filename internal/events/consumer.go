// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/metrics"
)

// Applier applies interactions to user state.
type Applier interface {
	RecordInteractions(ctx context.Context, userID string, entries []interactions.Entry) error
}

// ConsumerStats counts handled events.
type ConsumerStats struct {
	Applied int64 `json:"applied"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Consumer applies InteractionRecorded events.
type Consumer struct {
	applier Applier
	topic   string
	logger  zerolog.Logger

	applied atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewConsumer creates a consumer for events on topic.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewConsumer(applier Applier, topic string, logger zerolog.Logger) *Consumer {
	return &Consumer{
		applier: applier,
		topic:   topic,
		logger:  logger.With().Str("component", "event_consumer").Logger(),
	}
}

// Handle is a Watermill NoPublishHandlerFunc. Permanent failures are
// acknowledged and dropped; other errors are returned so the router retries.
func (c *Consumer) Handle(msg *message.Message) error {
	event, err := FromMessage(msg)
	if err != nil {
		c.drop(msg, err)
		return nil
	}

	err = c.applier.RecordInteractions(msg.Context(), event.UserID, []interactions.Entry{event.Entry()})
	switch {
	case err == nil:
		c.applied.Add(1)
		metrics.RecordEventConsumed(c.topic, "applied")
		return nil
	case errors.Is(err, catalog.ErrUnknownItem):
		c.drop(msg, err)
		return nil
	default:
		c.failed.Add(1)
		metrics.RecordEventConsumed(c.topic, "failed")
		return fmt.Errorf("apply event %s: %w", event.EventID, err)
	}
}

func (c *Consumer) drop(msg *message.Message, err error) {
	c.dropped.Add(1)
	metrics.RecordEventConsumed(c.topic, "dropped")
	c.logger.Warn().
		Err(err).
		Str("message_uuid", msg.UUID).
		Str("user_id", msg.Metadata.Get(MetadataUserID)).
		Msg("dropping event")
}

// Stats returns the handled-event counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Applied: c.applied.Load(),
		Dropped: c.dropped.Load(),
		Failed:  c.failed.Load(),
	}
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/resilience"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher publishes interaction events behind a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	topic     string
	source    string
	breaker   *resilience.Breaker[struct{}]
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. source is stamped on every event.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPublisher(pub message.Publisher, topic, source string, logger zerolog.Logger) *Publisher {
	logger = logger.With().Str("component", "event_publisher").Logger()
	return &Publisher{
		publisher: pub,
		topic:     topic,
		source:    source,
		breaker: resilience.NewBreaker[struct{}](resilience.BreakerConfig{
			Name:             "event_publisher",
			FailureThreshold: 5,
		}, logger),
		logger: logger,
	}
}

// Topic returns the publish topic.
func (p *Publisher) Topic() string { return p.topic }

// NewEvents builds one event per entry, stamped with the publisher source.
func (p *Publisher) NewEvents(userID string, entries []interactions.Entry) []*InteractionRecorded {
	out := make([]*InteractionRecorded, len(entries))
	for i, en := range entries {
		out[i] = NewInteractionRecorded(userID, en, p.source)
	}
	return out
}

// PublishInteractions publishes one event per entry. Publishing stops at the
// first failure; earlier events stay published.
func (p *Publisher) PublishInteractions(ctx context.Context, userID string, entries []interactions.Entry) error {
	return p.PublishEvents(ctx, p.NewEvents(userID, entries))
}

// PublishEvents publishes prebuilt events in order, keeping their IDs so a
// republished batch deduplicates downstream.
func (p *Publisher) PublishEvents(ctx context.Context, evs []*InteractionRecorded) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msgs := make([]*message.Message, 0, len(evs))
	for _, ev := range evs {
		msg, err := ToMessage(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.publisher.Publish(p.topic, msg)
		})
		metrics.RecordEventPublished(p.topic, err)
		if err != nil {
			return fmt.Errorf("publish event %s: %w", msg.UUID, err)
		}
	}

	if len(evs) > 0 {
		p.logger.Debug().
			Str("user_id", evs[0].UserID).
			Int("events", len(msgs)).
			Msg("interactions published")
	}
	return nil
}

// Close marks the publisher closed. The underlying transport is closed by
// its owner.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

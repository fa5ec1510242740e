// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/api"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/events"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/supervisor/services"
	"github.com/tomtom215/atelier/internal/wal"
)

// eventBus holds the interaction bus wired into the API and supervisor.
type eventBus struct {
	Publisher *events.Publisher
	NewRouter services.RouterFactory

	// API is what the HTTP handler publishes through: the outbox-backed
	// publisher when the outbox is enabled, Publisher otherwise.
	API api.InteractionPublisher

	// Retry replays the outbox. Nil when the outbox is disabled.
	Retry *wal.RetryLoop

	outbox    *wal.BadgerWAL
	transport *events.Transport
}

// Close releases the publisher, the outbox, then the transport.
func (b *eventBus) Close() {
	if err := b.Publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing event publisher")
	}
	if b.outbox != nil {
		if err := b.outbox.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing interaction outbox")
		}
	}
	if err := b.transport.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing event transport")
	}
}

// eventsConfig maps application settings onto the bus configuration.
func eventsConfig(cfg *config.Config) events.Config {
	ec := events.DefaultConfig()
	ev := cfg.Events
	ec.Transport = ev.Transport
	ec.Topic = ev.Topic
	ec.NATSURL = ev.NATSURL
	ec.QueueGroup = ev.QueueGroup
	ec.Subscribers = ev.Subscribers
	ec.OutputBuffer = ev.OutputBuffer
	ec.RetryMaxRetries = ev.RetryMaxRetries
	ec.RetryInitialInterval = ev.RetryInitialInterval
	ec.CloseTimeout = ev.CloseTimeout
	ec.PoisonTopic = ev.PoisonTopic
	ec.DedupTTL = ev.DedupTTL
	return ec
}

// outboxConfig maps application settings onto the outbox configuration.
func outboxConfig(cfg *config.Config) wal.Config {
	wc := wal.DefaultConfig()
	o := cfg.Events.Outbox
	wc.Path = o.Path
	wc.InMemory = o.InMemory
	wc.SyncWrites = o.SyncWrites
	wc.RetryInterval = o.RetryInterval
	wc.RetryBackoff = o.RetryBackoff
	wc.MaxRetries = o.MaxRetries
	wc.EntryTTL = o.EntryTTL
	wc.PublishTimeout = cfg.Events.CloseTimeout
	return wc
}

// initEvents opens the transport and prepares the publisher and consumer.
// The router itself is built by the supervised service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func initEvents(cfg *config.Config, applier events.Applier, logger zerolog.Logger) (*eventBus, error) {
	ec := eventsConfig(cfg)
	wmLogger := logging.NewWatermillLogger(componentLogger(logger, "watermill"))

	transport, err := events.NewTransport(ec, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("open event transport: %w", err)
	}

	source, _ := os.Hostname() //nolint:errcheck // source is informational
	if source == "" {
		source = "atelier"
	}

	consumer := events.NewConsumer(applier, ec.Topic, logger)
	publisher := events.NewPublisher(transport.Publisher, ec.Topic, source, logger)
	bus := &eventBus{
		Publisher: publisher,
		NewRouter: func() (services.EventRouter, error) {
			return events.NewRouter(ec, transport, consumer, wmLogger)
		},
		API:       publisher,
		transport: transport,
	}

	if cfg.Events.Outbox.Enabled {
		outbox, err := wal.Open(outboxConfig(cfg))
		if err != nil {
			_ = transport.Close() //nolint:errcheck // open error takes precedence
			return nil, fmt.Errorf("open interaction outbox: %w", err)
		}
		durable := events.NewDurablePublisher(publisher, outbox, logger)
		bus.outbox = outbox
		bus.API = durable
		bus.Retry = wal.NewRetryLoop(outbox, durable, logger)
	}

	logging.Info().
		Str("transport", transport.Name).
		Str("topic", ec.Topic).
		Str("poison_topic", ec.PoisonTopic).
		Dur("dedup_ttl", ec.DedupTTL).
		Bool("outbox", bus.outbox != nil).
		Msg("Event bus ready")
	return bus, nil
}

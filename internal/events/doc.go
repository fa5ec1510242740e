// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package events carries user interactions over a Watermill message bus.

Producers (the HTTP API, kiosks, importers) publish one InteractionRecorded
event per interacted item on the interactions topic. A Router subscribes to
the topic and hands each event to a Consumer, which applies it to the
recommendation engine.

Two transports are supported:

  - gochannel: in-process pub/sub, the default for single-node deployments
  - nats: core NATS with a queue group, so several server replicas share the
    stream of events

Router middleware, outermost first: Recoverer, PoisonQueue (when a poison
topic is configured), Deduplicator (when a dedup TTL is set, keyed by event
ID), Retry with exponential backoff.

Malformed events and events naming unknown items are dropped with a warning;
they would fail identically on every retry.
*/
package events

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package wal is a BadgerDB-backed outbox for interaction events.

The HTTP API accepts interactions with 202 before the event bus has applied
them. Without an outbox, a publish failure between acceptance and delivery
(NATS down, breaker open, process crash) loses the batch. With the outbox
enabled, every batch is written here first:

	POST /interactions
	      |
	      v
	 BadgerWAL.Write  --(fsync)-->  pending:<uuidv7>
	      |
	      v
	 events.Publisher.PublishInteractions
	      |            \
	   success        failure
	      |              \
	 Confirm (delete)   UpdateAttempt, left for RetryLoop

RetryLoop runs under the supervisor. It replays every pending entry once on
start, covering batches left behind by a crash, then retries on an interval
with exponential backoff per entry. Entries that exceed MaxRetries or
EntryTTL are dropped and counted.

Entry IDs are UUIDv7, so pending keys iterate in write order and replays
preserve per-user ordering.

Delivery is at least once. The consumer side deduplicates on event ID, and
event IDs are assigned when the batch is written, so a replayed batch
carries the same IDs as the original attempt.
*/
package wal

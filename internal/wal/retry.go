// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package wal

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/metrics"
)

// maxBackoff caps the per-entry retry delay.
const maxBackoff = 5 * time.Minute

// Publisher delivers one outbox entry.
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry implements Publisher.
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// PassResult counts the outcomes of one pass over the pending entries.
type PassResult struct {
	Pending   int
	Delivered int
	Failed    int
	Dropped   int
	Skipped   int
}

// RetryLoop replays pending entries. It implements suture.Service.
type RetryLoop struct {
	wal       *BadgerWAL
	publisher Publisher
	config    Config
	logger    zerolog.Logger

	now func() time.Time
}

// NewRetryLoop builds a loop over w delivering through publisher.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRetryLoop(w *BadgerWAL, publisher Publisher, logger zerolog.Logger) *RetryLoop {
	return &RetryLoop{
		wal:       w,
		publisher: publisher,
		config:    w.Config(),
		logger:    logger.With().Str("component", "wal_retry").Logger(),
		now:       time.Now,
	}
}

// Serve runs a recovery pass, then retries on every tick until ctx is done.
func (r *RetryLoop) Serve(ctx context.Context) error {
	res := r.RunPass(ctx)
	if res.Pending > 0 {
		r.logger.Info().
			Int("pending", res.Pending).
			Int("delivered", res.Delivered).
			Int("failed", res.Failed).
			Int("dropped", res.Dropped).
			Msg("Outbox recovery pass complete")
	}

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	var gcC <-chan time.Time
	if r.config.GCInterval > 0 {
		gc := time.NewTicker(r.config.GCInterval)
		defer gc.Stop()
		gcC = gc.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res := r.RunPass(ctx)
			if res.Delivered > 0 || res.Failed > 0 || res.Dropped > 0 {
				r.logger.Info().
					Int("delivered", res.Delivered).
					Int("failed", res.Failed).
					Int("dropped", res.Dropped).
					Msg("Outbox retry pass complete")
			}
		case <-gcC:
			if err := r.wal.RunGC(r.config.GCDiscardRatio); err != nil {
				r.logger.Warn().Err(err).Msg("Outbox value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *RetryLoop) String() string {
	return "wal-retry"
}

// RunPass attempts every pending entry once.
func (r *RetryLoop) RunPass(ctx context.Context) PassResult {
	entries, err := r.wal.GetPending(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list pending outbox entries")
		return PassResult{}
	}

	res := PassResult{Pending: len(entries)}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		switch r.process(ctx, e) {
		case outcomeDelivered:
			res.Delivered++
		case outcomeFailed:
			res.Failed++
		case outcomeDropped:
			res.Dropped++
		case outcomeSkipped:
			res.Skipped++
		}
	}
	metrics.SetWALPending(res.Pending - res.Delivered - res.Dropped)
	return res
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeFailed
	outcomeDropped
	outcomeSkipped
)

func (r *RetryLoop) process(ctx context.Context, e *Entry) outcome {
	if !r.wal.TryClaimEntry(e.ID) {
		return outcomeSkipped
	}
	defer r.wal.ReleaseEntry(e.ID)

	now := r.now()
	if now.Sub(e.CreatedAt) > r.config.EntryTTL || e.Attempts >= r.config.MaxRetries {
		r.logger.Warn().
			Str("entry_id", e.ID).
			Int("attempts", e.Attempts).
			Str("last_error", e.LastError).
			Time("created_at", e.CreatedAt).
			Msg("Dropping undeliverable outbox entry")
		if err := r.wal.DeleteEntry(ctx, e.ID); err != nil {
			r.logger.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to drop outbox entry")
			return outcomeFailed
		}
		return outcomeDropped
	}

	if !e.LastAttemptAt.IsZero() && now.Sub(e.LastAttemptAt) < Backoff(r.config.RetryBackoff, e.Attempts) {
		return outcomeSkipped
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	err := r.publisher.PublishEntry(pubCtx, e)
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Str("entry_id", e.ID).Int("attempt", e.Attempts+1).Msg("Outbox replay failed")
		if uerr := r.wal.UpdateAttempt(ctx, e.ID, err.Error()); uerr != nil {
			r.logger.Error().Err(uerr).Str("entry_id", e.ID).Msg("Failed to record outbox attempt")
		}
		return outcomeFailed
	}

	if err := r.wal.Confirm(ctx, e.ID); err != nil {
		r.logger.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to confirm outbox entry")
		return outcomeFailed
	}
	return outcomeDelivered
}

// Backoff returns base * 2^attempts, capped at five minutes.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts)))
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package backup

import (
	"context"
	"time"
)

// Scheduler creates a backup on every interval tick and then applies
// retention. It implements suture.Service.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	now      func() time.Time
}

// NewScheduler builds a scheduler for m.
func NewScheduler(m *Manager, interval time.Duration) *Scheduler {
	return &Scheduler{manager: m, interval: interval, now: time.Now}
}

// Serve runs until ctx is done. Backup failures are logged and retried on
// the next tick.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce creates one scheduled backup and applies retention.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if _, err := s.manager.CreateBackup(ctx, TriggerScheduled, ""); err != nil {
		s.manager.logger.Error().Err(err).Msg("Scheduled state backup failed")
		return
	}
	if _, err := s.manager.ApplyRetention(s.now()); err != nil {
		s.manager.logger.Warn().Err(err).Msg("Backup retention incomplete")
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "state-backup"
}

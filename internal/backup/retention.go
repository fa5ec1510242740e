// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package backup

import (
	"errors"
	"time"
)

// keepSet returns the IDs policy keeps out of backups, which must be sorted
// newest first.
func keepSet(backups []*Backup, policy RetentionPolicy, now time.Time) map[string]bool {
	keep := make(map[string]bool)

	for i := 0; i < policy.MinCount && i < len(backups); i++ {
		keep[backups[i].ID] = true
	}

	if policy.KeepRecent > 0 {
		cutoff := now.Add(-policy.KeepRecent)
		for _, b := range backups {
			if b.CreatedAt.After(cutoff) {
				keep[b.ID] = true
			}
		}
	}

	if policy.KeepDailyForDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.KeepDailyForDays)
		seen := make(map[string]bool)
		for _, b := range backups {
			if b.CreatedAt.Before(cutoff) {
				break
			}
			day := b.CreatedAt.UTC().Format(time.DateOnly)
			if !seen[day] {
				seen[day] = true
				keep[b.ID] = true
			}
		}
	}

	if policy.MaxCount > 0 {
		limit := max(policy.MaxCount, policy.MinCount)
		kept := 0
		for _, b := range backups {
			if !keep[b.ID] {
				continue
			}
			kept++
			if kept > limit {
				delete(keep, b.ID)
			}
		}
	}
	return keep
}

// ApplyRetention deletes every backup the policy does not keep and returns
// the deleted entries.
func (m *Manager) ApplyRetention(now time.Time) ([]*Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backups := append([]*Backup(nil), m.meta.Backups...)
	sortNewestFirst(backups)
	keep := keepSet(backups, m.policy, now)

	var deleted []*Backup
	var errs []error
	for _, b := range backups {
		if keep[b.ID] {
			continue
		}
		if err := m.deleteLocked(b.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, b)
	}

	if len(deleted) > 0 {
		m.logger.Info().Int("deleted", len(deleted)).Int("kept", len(keep)).Msg("Backup retention applied")
	}
	return deleted, errors.Join(errs...)
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package backup

import (
	"errors"
	"io"
	"time"
)

// Errors
var (
	ErrBackupNotFound = errors.New("backup not found")
	ErrNoSource       = errors.New("backup manager has no source")
	ErrChecksum       = errors.New("backup checksum mismatch")
)

// Trigger records what started a backup.
type Trigger string

// Triggers
const (
	TriggerManual     Trigger = "manual"
	TriggerScheduled  Trigger = "scheduled"
	TriggerPreRestore Trigger = "pre_restore"
)

// Source produces a backup stream.
type Source interface {
	Backup(w io.Writer) (uint64, error)
}

// Target loads a backup stream.
type Target interface {
	Restore(r io.Reader) error
}

// Backup describes one backup file.
type Backup struct {
	ID        string    `json:"id"`
	Trigger   Trigger   `json:"trigger"`
	CreatedAt time.Time `json:"created_at"`

	// Duration is how long writing the backup took.
	Duration time.Duration `json:"duration_ns"`

	// FileName is relative to the backup directory.
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`

	// Checksum is the hex SHA-256 of the compressed file.
	Checksum string `json:"checksum"`

	// Version is the store version the backup is consistent at.
	Version uint64 `json:"version"`

	Notes string `json:"notes,omitempty"`
}

// RetentionPolicy selects the backups to keep. A backup is kept if any rule
// keeps it; everything else is deleted.
type RetentionPolicy struct {
	// MinCount always keeps the newest N backups.
	MinCount int

	// KeepRecent keeps every backup younger than this.
	KeepRecent time.Duration

	// KeepDailyForDays keeps the newest backup of each of the last N days.
	KeepDailyForDays int

	// MaxCount caps the kept set, oldest first, never below MinCount.
	// Zero means no cap.
	MaxCount int
}

// DefaultRetentionPolicy keeps a day of backups and one per day for a week.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MinCount:         3,
		KeepRecent:       24 * time.Hour,
		KeepDailyForDays: 7,
		MaxCount:         50,
	}
}

// Config configures a Manager.
type Config struct {
	Dir       string
	Interval  time.Duration
	Retention RetentionPolicy
}

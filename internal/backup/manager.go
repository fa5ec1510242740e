// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const metadataFile = "backups.json"

// metadata is the on-disk index of backups.
type metadata struct {
	Backups []*Backup `json:"backups"`
}

// Manager creates, lists, validates and restores backups in one directory.
type Manager struct {
	dir    string
	source Source
	policy RetentionPolicy
	logger zerolog.Logger

	mu   sync.Mutex
	meta metadata
}

// NewManager opens the backup directory, creating it if needed. source may be
// nil for a restore-only manager.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewManager(cfg Config, source Source, logger zerolog.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup: directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	m := &Manager{
		dir:    cfg.Dir,
		source: source,
		policy: cfg.Retention,
		logger: logger.With().Str("component", "backup").Logger(),
	}
	if err := m.loadMetadata(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(m.dir, metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup metadata: %w", err)
	}
	if err := json.Unmarshal(data, &m.meta); err != nil {
		return fmt.Errorf("parse backup metadata: %w", err)
	}
	return nil
}

// saveMetadataLocked writes the index atomically. Caller holds mu.
func (m *Manager) saveMetadataLocked() error {
	data, err := json.MarshalIndent(&m.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup metadata: %w", err)
	}
	path := filepath.Join(m.dir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

// CreateBackup writes a full backup of the source.
func (m *Manager) CreateBackup(ctx context.Context, trigger Trigger, notes string) (*Backup, error) {
	if m.source == nil {
		return nil, ErrNoSource
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	id := uuid.New().String()
	b := &Backup{
		ID:        id,
		Trigger:   trigger,
		CreatedAt: start,
		FileName:  fmt.Sprintf("state-%s-%s.bak.gz", start.Format("20060102T150405Z"), id[:8]),
		Notes:     notes,
	}

	path := filepath.Join(m.dir, b.FileName)
	if err := m.writeArchive(path, b); err != nil {
		_ = os.Remove(path)          //nolint:errcheck // cleanup of a partial file
		_ = os.Remove(path + ".tmp") //nolint:errcheck // cleanup of a partial file
		return nil, err
	}
	b.Duration = time.Since(start)

	m.mu.Lock()
	m.meta.Backups = append(m.meta.Backups, b)
	err := m.saveMetadataLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("backup_id", b.ID).
		Str("trigger", string(trigger)).
		Int64("size_bytes", b.FileSize).
		Dur("duration", b.Duration).
		Msg("State backup created")
	return b, nil
}

// writeArchive streams the source through gzip into path, filling size,
// checksum and version on b.
func (m *Manager) writeArchive(path string, b *Backup) (err error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path built from the backup dir
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close() //nolint:errcheck // already failing
		}
	}()

	h := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(f, h)}
	gz := gzip.NewWriter(counter)

	version, err := m.source.Backup(gz)
	if err != nil {
		return fmt.Errorf("backup source: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync backup file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize backup file: %w", err)
	}

	b.FileSize = counter.n
	b.Checksum = hex.EncodeToString(h.Sum(nil))
	b.Version = version
	return nil
}

// ListBackups returns all backups, newest first.
func (m *Manager) ListBackups() []*Backup {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Backup, len(m.meta.Backups))
	for i, b := range m.meta.Backups {
		cp := *b
		out[i] = &cp
	}
	sortNewestFirst(out)
	return out
}

// GetBackup returns the backup with id.
func (m *Manager) GetBackup(id string) (*Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, _ := m.findLocked(id); b != nil {
		cp := *b
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// DeleteBackup removes a backup file and its index entry.
func (m *Manager) DeleteBackup(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Manager) deleteLocked(id string) error {
	b, i := m.findLocked(id)
	if b == nil {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	if err := os.Remove(filepath.Join(m.dir, b.FileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup file: %w", err)
	}
	m.meta.Backups = append(m.meta.Backups[:i], m.meta.Backups[i+1:]...)
	return m.saveMetadataLocked()
}

func (m *Manager) findLocked(id string) (*Backup, int) {
	for i, b := range m.meta.Backups {
		if b.ID == id {
			return b, i
		}
	}
	return nil, -1
}

// ValidateBackup checks the file checksum and that the gzip stream reads to
// the end.
func (m *Manager) ValidateBackup(id string) error {
	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(m.dir, b.FileName))
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	h := sha256.New()
	gz, err := gzip.NewReader(io.TeeReader(f, h))
	if err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	// Drain any trailing bytes so the checksum covers the whole file.
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != b.Checksum {
		return fmt.Errorf("%w: %s", ErrChecksum, id)
	}
	return nil
}

// RestoreFromBackup validates a backup, then loads it into target.
func (m *Manager) RestoreFromBackup(ctx context.Context, id string, target Target) error {
	if err := m.ValidateBackup(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(m.dir, b.FileName))
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	start := time.Now()
	if err := target.Restore(gz); err != nil {
		return fmt.Errorf("restore backup %s: %w", id, err)
	}

	m.logger.Info().
		Str("backup_id", id).
		Uint64("version", b.Version).
		Dur("duration", time.Since(start)).
		Msg("State restored from backup")
	return nil
}

func sortNewestFirst(bs []*Backup) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].CreatedAt.After(bs[j].CreatedAt) })
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

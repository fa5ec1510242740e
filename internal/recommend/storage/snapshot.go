// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a name.
var ErrSnapshotNotFound = errors.New("storage: snapshot not found")

// ErrChecksumMismatch is returned when a snapshot fails verification.
var ErrChecksumMismatch = errors.New("storage: checksum mismatch")

const snapshotExt = ".gob.gz"

// SnapshotMetadata describes a stored snapshot.
type SnapshotMetadata struct {
	// Name identifies the snapshot family, e.g. "facets".
	Name string `json:"name"`

	// Version increases monotonically per name.
	Version int `json:"version"`

	// Model is the embedding model the payload was built with.
	Model string `json:"model,omitempty"`

	// ItemCount is the number of catalog items covered.
	ItemCount int `json:"item_count"`

	BuiltAt time.Time `json:"built_at"`
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the SHA-256 of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       SnapshotMetadata
	CompressedData []byte
}

// Store manages versioned snapshots in a directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per name
	versions map[string]int
}

// NewStore opens a snapshot store, creating baseDir if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}
	files, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	for name, versions := range files {
		s.versions[name] = versions[0]
	}
	return s, nil
}

// scan returns the versions on disk per name, newest first.
func (s *Store) scan() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseSnapshotFilename(entry.Name())
		if !ok {
			continue
		}
		out[name] = append(out[name], version)
	}
	for _, versions := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	}
	return out, nil
}

// parseSnapshotFilename splits "facets_v3.gob.gz" into ("facets", 3).
func parseSnapshotFilename(filename string) (string, int, bool) {
	base, ok := strings.CutSuffix(filename, snapshotExt)
	if !ok {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version <= 0 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// Save writes data as the given version of name. Version 0 means the next
// version after the latest.
//
//nolint:gocritic // meta passed by value is filled in and written
func (s *Store) Save(ctx context.Context, name string, version int, data any, meta SnapshotMetadata) (*SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid snapshot name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version == 0 {
		version = s.versions[name] + 1
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	// Write to a temp file first so a crash never leaves a torn snapshot.
	tmp, err := os.CreateTemp(s.baseDir, ".snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() //nolint:errcheck // no-op after rename

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return nil, fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(name, version)); err != nil {
		return nil, fmt.Errorf("rename snapshot file: %w", err)
	}

	if version > s.versions[name] {
		s.versions[name] = version
	}
	return &meta, nil
}

// Load decodes a snapshot into target. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int, target any) (*SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		if version, ok = s.versions[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
	}

	sf, err := readStoredFile(s.path(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s v%d", ErrSnapshotNotFound, name, version)
		}
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // read-only

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, sf.Metadata.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &sf.Metadata, nil
}

func readStoredFile(path string) (*storedFile, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return &sf, nil
}

// LatestVersion returns the newest version of name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[name]
	return v, ok
}

// List returns the metadata of the latest version of every snapshot, sorted
// by name. Unreadable files are skipped.
func (s *Store) List(ctx context.Context) ([]SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SnapshotMetadata, 0, len(s.versions))
	for name, version := range s.versions {
		sf, err := readStoredFile(s.path(name, version))
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes one version of name.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name, version)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return s.rescanLocked(name)
}

// Prune keeps the newest keep versions of name and removes the rest.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.scan()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}

	removed := 0
	versions := files[name]
	for i := keep; i < len(versions); i++ {
		if err := os.Remove(s.path(name, versions[i])); err != nil {
			return removed, fmt.Errorf("prune snapshot: %w", err)
		}
		removed++
	}
	return removed, s.rescanLocked(name)
}

// rescanLocked refreshes the latest version of name from disk.
func (s *Store) rescanLocked(name string) error {
	files, err := s.scan()
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}
	if versions := files[name]; len(versions) > 0 {
		s.versions[name] = versions[0]
	} else {
		delete(s.versions, name)
	}
	return nil
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, snapshotExt))
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// InteractedFiles writes each user's interacted set to
// <dir>/interacted_<user>.txt, one item ID per line.
type InteractedFiles struct {
	dir string
}

// NewInteractedFiles creates dir if needed.
func NewInteractedFiles(dir string) (*InteractedFiles, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create interacted directory: %w", err)
	}
	return &InteractedFiles{dir: dir}, nil
}

// Path returns the file of a user. The user ID is escaped so it always
// forms a single path element.
func (f *InteractedFiles) Path(userID string) string {
	return filepath.Join(f.dir, "interacted_"+url.PathEscape(userID)+".txt")
}

// WriteInteracted implements recommend.InteractedStore. The file is replaced
// atomically.
func (f *InteractedFiles) WriteInteracted(ctx context.Context, userID string, ids []int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(f.dir, ".interacted-*")
	if err != nil {
		return fmt.Errorf("create interacted file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() //nolint:errcheck // no-op after rename

	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write interacted file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close interacted file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path(userID)); err != nil {
		return fmt.Errorf("rename interacted file: %w", err)
	}
	return nil
}

// ReadInteracted implements recommend.InteractedStore. A missing file yields
// an empty set.
func (f *InteractedFiles) ReadInteracted(ctx context.Context, userID string) ([]int64, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open interacted file: %w", err)
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // read-only

	var ids []int64
	sc := bufio.NewScanner(file)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("interacted file line %d: %w", line, err)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read interacted file: %w", err)
	}
	return ids, nil
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/atelier/internal/metrics"
)

// Files names the optional side files of a catalog.
type Files struct {
	AliasesPath  string
	TagTypesPath string
}

// Open loads src, applies the alias and tag type files, and builds the
// catalog.
//
//nolint:gocritic // hugeParam: Source is a small config value
func Open(ctx context.Context, src Source, files Files) (*Catalog, error) {
	start := time.Now()

	var opts Options
	if files.AliasesPath != "" {
		aliases, err := LoadAliases(files.AliasesPath)
		if err != nil {
			return nil, fmt.Errorf("load tag aliases: %w", err)
		}
		opts.Aliases = aliases
	}
	if files.TagTypesPath != "" {
		types, err := LoadTagTypes(files.TagTypesPath)
		if err != nil {
			return nil, fmt.Errorf("load tag types: %w", err)
		}
		opts.TagTypes = types
	}

	items, err := Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", src.Path, err)
	}
	c, err := New(items, opts)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	format := src.Format
	if format == "" {
		format = detectFormat(src.Path)
	}
	metrics.RecordCatalogLoad(format, time.Since(start), c.Len())
	return c, nil
}

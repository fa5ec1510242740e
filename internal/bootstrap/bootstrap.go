// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package bootstrap builds the catalog, indexes, embedder and channel
// dependencies from configuration. It is shared by the server and atelierctl.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/backup"
	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/embedding"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/recommend/channels"
	"github.com/tomtom215/atelier/internal/recommend/index"
	"github.com/tomtom215/atelier/internal/recommend/storage"
)

// OpenStateStore opens BadgerDB. It returns nil when persistence is off.
func OpenStateStore(cfg *config.Config) (*storage.BadgerStore, error) {
	if cfg.Storage.StatePath == "" && !cfg.Storage.InMemory {
		logging.Warn().Msg("No state path configured, sessions are kept in memory only")
		return nil, nil
	}
	store, err := storage.OpenBadger(storage.BadgerOptions{
		Path:        cfg.Storage.StatePath,
		InMemory:    cfg.Storage.InMemory,
		SyncWrites:  cfg.Storage.SyncWrites,
		Compression: true,
		SessionTTL:  cfg.Storage.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return store, nil
}

// OpenBackupManager opens the state backup directory. source may be nil for
// restore-only use.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenBackupManager(cfg *config.Config, source backup.Source, logger zerolog.Logger) (*backup.Manager, error) {
	if cfg.Storage.BackupDir == "" {
		return nil, errors.New("no backup directory configured (storage.backup_dir)")
	}
	policy := backup.DefaultRetentionPolicy()
	policy.MinCount = cfg.Storage.BackupKeep
	policy.KeepDailyForDays = cfg.Storage.BackupKeepDays
	m, err := backup.NewManager(backup.Config{
		Dir:       cfg.Storage.BackupDir,
		Interval:  cfg.Storage.BackupInterval,
		Retention: policy,
	}, source, logger)
	if err != nil {
		return nil, fmt.Errorf("open backup manager: %w", err)
	}
	return m, nil
}

// OpenInteractedFiles prepares the interacted set directory.
func OpenInteractedFiles(dir string) (*storage.InteractedFiles, error) {
	files, err := storage.NewInteractedFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("open interacted directory: %w", err)
	}
	return files, nil
}

// LoadCatalog loads the configured catalog with its alias and tag type
// files. An empty catalog is an error.
func LoadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	start := time.Now()
	cat, err := catalog.Open(ctx, catalog.Source{
		Path:   cfg.Catalog.Path,
		Format: cfg.Catalog.Format,
		Query:  cfg.Catalog.Query,
	}, catalog.Files{
		AliasesPath:  cfg.Catalog.AliasesPath,
		TagTypesPath: cfg.Catalog.TagTypesPath,
	})
	if err != nil {
		return nil, err
	}
	if cat.Len() == 0 {
		return nil, errors.New("catalog is empty")
	}
	logging.Info().
		Int("items", cat.Len()).
		Int("artists", len(cat.Artists())).
		Int("tags", len(cat.TagNames())).
		Dur("duration", time.Since(start)).
		Msg("Catalog loaded")
	return cat, nil
}

// BuildEmbedder returns the configured embedder, or nil for provider none.
// The returned func releases the cache.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func BuildEmbedder(cfg *config.Config, logger zerolog.Logger) (embedding.Embedder, func(), error) {
	ec := cfg.Embedding
	var inner embedding.Embedder
	switch ec.Provider {
	case "none", "":
		return nil, func() {}, nil
	case "static":
		model := ec.Model
		if model == "" {
			model = "static"
		}
		s, err := embedding.LoadStaticFile(ec.StaticPath, model)
		if err != nil {
			return nil, nil, fmt.Errorf("load static embeddings: %w", err)
		}
		inner = s
	case "http":
		inner = embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			Endpoint:          ec.Endpoint,
			APIKey:            ec.APIKey,
			Model:             ec.Model,
			Dimensions:        ec.Dimensions,
			RequestsPerSecond: ec.RequestsPerSecond,
			BatchSize:         ec.BatchSize,
			Timeout:           ec.Timeout,
			MaxRetries:        ec.MaxRetries,
		}, logger)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}

	if ec.CacheTTL <= 0 {
		return inner, func() {}, nil
	}
	cached := embedding.NewCached(inner, ec.CacheTTL)
	return cached, cached.Close, nil
}

// BuildChannelDeps loads indexes and derived tables. Channels whose data is
// unavailable are left out by the factory.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func BuildChannelDeps(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, e embedding.Embedder, logger zerolog.Logger) (channels.Deps, error) {
	log := componentLogger(logger, "startup")
	deps := channels.Deps{Catalog: cat, Embedder: e, Logger: logger}
	ch := cfg.Recommend.Channels

	// Searcher fields stay nil interfaces when a path is unset.
	if cfg.Index.ImagePath != "" && ch.Image.Enabled {
		x, err := index.LoadFile(cfg.Index.ImagePath)
		if err != nil {
			return deps, fmt.Errorf("load image index: %w", err)
		}
		deps.ImageIndex = x
		log.Info().Int("vectors", x.Len()).Int("dim", x.Dim()).Msg("Image index loaded")
	}
	if cfg.Index.DescriptionPath != "" && ch.Description.Enabled {
		x, err := index.LoadFile(cfg.Index.DescriptionPath)
		if err != nil {
			return deps, fmt.Errorf("load description index: %w", err)
		}
		deps.DescriptionIndex = x
		log.Info().Int("vectors", x.Len()).Int("dim", x.Dim()).Msg("Description index loaded")
	}

	if e == nil {
		if ch.Profile.Enabled || ch.ColdStart.Enabled {
			log.Warn().Msg("No embedding provider, profile and cold-start channels disabled")
		}
		return deps, nil
	}

	if ch.Profile.Enabled {
		start := time.Now()
		metric, err := index.ParseMetric(cfg.Index.TagMetric)
		if err != nil {
			return deps, err
		}
		tags, _, err := channels.BuildTagIndex(ctx, e, cat.TagNames(), metric)
		if err != nil {
			return deps, fmt.Errorf("build tag index: %w", err)
		}
		deps.Tags = tags
		log.Info().Int("tags", tags.Len()).Msg("Tag index built")
		timed(log, "tag_index", start)
	}

	if ch.ColdStart.Enabled {
		start := time.Now()
		table, err := LoadFacetTable(ctx, cfg, cat, e, log)
		if err != nil {
			return deps, err
		}
		deps.Facets = table
		timed(log, "facet_table", start)
	}
	return deps, nil
}

// LoadFacetTable reuses the latest snapshot when it was built with the same
// model over a catalog of the same size, and rebuilds it otherwise.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func LoadFacetTable(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, e embedding.Embedder, log zerolog.Logger) (*channels.FacetTable, error) {
	if cfg.Storage.SnapshotDir == "" {
		return channels.BuildFacetTable(ctx, e, cat.Items())
	}

	snaps, err := storage.NewStore(cfg.Storage.SnapshotDir)
	if err != nil {
		return nil, err
	}
	name := FacetSnapshotName(e.Model())

	var cached channels.FacetTable
	meta, err := snaps.Load(ctx, name, 0, &cached)
	switch {
	case err == nil && meta.Model == e.Model() && meta.ItemCount == cat.Len():
		log.Info().Str("snapshot", name).Int("version", meta.Version).Msg("Facet table loaded from snapshot")
		return &cached, nil
	case err != nil && !errors.Is(err, storage.ErrSnapshotNotFound):
		log.Warn().Err(err).Str("snapshot", name).Msg("Facet snapshot unreadable, rebuilding")
	}

	table, err := channels.BuildFacetTable(ctx, e, cat.Items())
	if err != nil {
		return nil, fmt.Errorf("build facet table: %w", err)
	}

	saved, err := snaps.Save(ctx, name, 0, table, storage.SnapshotMetadata{
		Model:     e.Model(),
		ItemCount: cat.Len(),
		BuiltAt:   time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to save facet snapshot")
		return table, nil
	}
	if _, err := snaps.Prune(ctx, name, cfg.Storage.SnapshotKeep); err != nil {
		log.Warn().Err(err).Msg("Failed to prune facet snapshots")
	}
	log.Info().Str("snapshot", name).Int("version", saved.Version).Msg("Facet table built")
	return table, nil
}

// FacetSnapshotName is the snapshot family of facet tables built with model.
// Characters unsafe in file names become underscores.
func FacetSnapshotName(model string) string {
	var b strings.Builder
	b.WriteString("facets_")
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func componentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func timed(logger zerolog.Logger, step string, start time.Time) {
	logger.Info().Str("step", step).Dur("duration", time.Since(start)).Msg("Startup step finished")
}

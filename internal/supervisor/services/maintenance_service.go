// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/metrics"
)

// Flusher persists modified sessions. Implemented by *recommend.Engine.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// GarbageCollector reclaims storage space. Implemented by
// *storage.BadgerStore.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// MaintenanceConfig configures StorageMaintenanceService.
type MaintenanceConfig struct {
	FlushInterval time.Duration

	// GCInterval of zero disables value log GC.
	GCInterval     time.Duration
	GCDiscardRatio float64

	// FinalFlushTimeout bounds the flush run on shutdown.
	FinalFlushTimeout time.Duration
}

// StorageMaintenanceService periodically flushes dirty sessions and runs
// BadgerDB value log GC. It flushes once more when stopped.
type StorageMaintenanceService struct {
	flusher Flusher
	gc      GarbageCollector
	config  MaintenanceConfig
	logger  zerolog.Logger
}

// NewStorageMaintenanceService creates the service. gc may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStorageMaintenanceService(flusher Flusher, gc GarbageCollector, config MaintenanceConfig, logger zerolog.Logger) *StorageMaintenanceService {
	if config.FlushInterval <= 0 {
		config.FlushInterval = 30 * time.Second
	}
	if config.GCDiscardRatio <= 0 || config.GCDiscardRatio >= 1 {
		config.GCDiscardRatio = 0.5
	}
	if config.FinalFlushTimeout <= 0 {
		config.FinalFlushTimeout = 10 * time.Second
	}
	return &StorageMaintenanceService{
		flusher: flusher,
		gc:      gc,
		config:  config,
		logger:  logger.With().Str("service", "storage-maintenance").Logger(),
	}
}

// Serve implements suture.Service.
func (s *StorageMaintenanceService) Serve(ctx context.Context) error {
	flushTicker := time.NewTicker(s.config.FlushInterval)
	defer flushTicker.Stop()

	var gcC <-chan time.Time
	if s.gc != nil && s.config.GCInterval > 0 {
		gcTicker := time.NewTicker(s.config.GCInterval)
		defer gcTicker.Stop()
		gcC = gcTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), s.config.FinalFlushTimeout)
			s.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-flushTicker.C:
			s.flush(ctx)
		case <-gcC:
			if err := s.gc.RunGC(s.config.GCDiscardRatio); err != nil {
				s.logger.Warn().Err(err).Msg("value log gc failed")
			}
		}
	}
}

// flush errors are logged, not returned: a failed session stays dirty and
// is retried on the next tick.
func (s *StorageMaintenanceService) flush(ctx context.Context) {
	start := time.Now()
	n, err := s.flusher.Flush(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("written", n).Msg("session flush failed")
		return
	}
	metrics.RecordSnapshot(time.Since(start), n)
	if n > 0 {
		s.logger.Debug().Int("written", n).Dur("duration", time.Since(start)).Msg("sessions flushed")
	}
}

func (s *StorageMaintenanceService) String() string {
	return "storage-maintenance"
}

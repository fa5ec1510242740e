// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) Flush(context.Context) (int, error) {
	f.calls.Add(1)
	return 1, f.err
}

type countingGC struct {
	calls atomic.Int32
	ratio atomic.Value
}

func (g *countingGC) RunGC(ratio float64) error {
	g.calls.Add(1)
	g.ratio.Store(ratio)
	return nil
}

func runFor(t *testing.T, svc *StorageMaintenanceService, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve() = %v, want context.DeadlineExceeded", err)
	}
}

func TestStorageMaintenanceService_FlushesPeriodically(t *testing.T) {
	t.Parallel()

	flusher := &countingFlusher{}
	gc := &countingGC{}
	svc := NewStorageMaintenanceService(flusher, gc, MaintenanceConfig{
		FlushInterval:  10 * time.Millisecond,
		GCInterval:     10 * time.Millisecond,
		GCDiscardRatio: 0.7,
	}, zerolog.Nop())

	runFor(t, svc, 120*time.Millisecond)

	// Periodic ticks plus the final flush.
	if n := flusher.calls.Load(); n < 3 {
		t.Errorf("flush calls = %d, want >= 3", n)
	}
	if n := gc.calls.Load(); n < 2 {
		t.Errorf("gc calls = %d, want >= 2", n)
	}
	if r, _ := gc.ratio.Load().(float64); r != 0.7 {
		t.Errorf("gc ratio = %v, want 0.7", r)
	}
}

func TestStorageMaintenanceService_FinalFlush(t *testing.T) {
	t.Parallel()

	flusher := &countingFlusher{}
	svc := NewStorageMaintenanceService(flusher, nil, MaintenanceConfig{FlushInterval: time.Hour}, zerolog.Nop())

	runFor(t, svc, 20*time.Millisecond)

	if n := flusher.calls.Load(); n != 1 {
		t.Errorf("flush calls = %d, want 1", n)
	}
}

func TestStorageMaintenanceService_FlushErrorKeepsRunning(t *testing.T) {
	t.Parallel()

	flusher := &countingFlusher{err: errors.New("disk full")}
	svc := NewStorageMaintenanceService(flusher, nil, MaintenanceConfig{FlushInterval: 5 * time.Millisecond}, zerolog.Nop())

	runFor(t, svc, 60*time.Millisecond)

	if n := flusher.calls.Load(); n < 3 {
		t.Errorf("flush calls = %d, want >= 3", n)
	}
}

func TestNewStorageMaintenanceService_Defaults(t *testing.T) {
	t.Parallel()

	svc := NewStorageMaintenanceService(&countingFlusher{}, nil, MaintenanceConfig{GCDiscardRatio: 1.5}, zerolog.Nop())
	if svc.config.FlushInterval != 30*time.Second {
		t.Errorf("FlushInterval = %v", svc.config.FlushInterval)
	}
	if svc.config.GCDiscardRatio != 0.5 {
		t.Errorf("GCDiscardRatio = %v", svc.config.GCDiscardRatio)
	}
	if svc.config.FinalFlushTimeout != 10*time.Second {
		t.Errorf("FinalFlushTimeout = %v", svc.config.FinalFlushTimeout)
	}
}

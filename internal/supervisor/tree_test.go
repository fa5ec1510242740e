// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/logging"
)

// stubService fails its first failures runs, then blocks until canceled.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *stubService) Serve(ctx context.Context) error {
	if s.starts.Add(1) <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(logging.NewSlogHandler(zerolog.Nop()))
}

func waitStarts(t *testing.T, svc *stubService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want >= %d", svc.name, svc.starts.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTree(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("Root() = nil")
	}
	if got, want := tree.Config(), DefaultTreeConfig(); got != want {
		t.Errorf("Config() = %+v, want %+v", got, want)
	}

	if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
		t.Error("NewSupervisorTree(nil) error = nil")
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	t.Parallel()

	c := DefaultTreeConfig()
	if c.FailureThreshold != 5 || c.FailureDecay != 30 {
		t.Errorf("failure params = %v/%v", c.FailureThreshold, c.FailureDecay)
	}
	if c.FailureBackoff != 15*time.Second || c.ShutdownTimeout != 10*time.Second {
		t.Errorf("durations = %v/%v", c.FailureBackoff, c.ShutdownTimeout)
	}
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	storage := &stubService{name: "storage"}
	events := &stubService{name: "events"}
	api := &stubService{name: "api"}
	tree.AddStorageService(storage)
	tree.AddEventService(events)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*stubService{storage, events, api} {
		waitStarts(t, svc, 1)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTree_RestartsFailingService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	flaky := &stubService{name: "flaky", failures: 2}
	stable := &stubService{name: "stable"}
	tree.AddEventService(flaky)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitStarts(t, flaky, 3)
	waitStarts(t, stable, 1)
	if n := stable.starts.Load(); n != 1 {
		t.Errorf("stable restarted: %d starts", n)
	}
}

func TestSupervisorTree_AddByLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := &stubService{name: "by-layer"}

	token, err := tree.Add(LayerEvents, svc)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := tree.Add(Layer("bogus"), svc); err == nil {
		t.Error("Add(bogus) error = nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)
	waitStarts(t, svc, 1)

	if err := tree.RemoveAndWait(LayerEvents, token, time.Second); err != nil {
		t.Errorf("RemoveAndWait() error = %v", err)
	}
	if err := tree.RemoveAndWait(Layer("bogus"), token, time.Second); err == nil {
		t.Error("RemoveAndWait(bogus) error = nil")
	}
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package wal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recordingPublisher fails while err is set and records delivered entries.
type recordingPublisher struct {
	mu        sync.Mutex
	err       error
	delivered []string
}

func (p *recordingPublisher) PublishEntry(_ context.Context, e *Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.delivered = append(p.delivered, e.ID)
	return nil
}

func (p *recordingPublisher) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.delivered)
}

func TestRetryLoop_RunPass(t *testing.T) {
	t.Parallel()

	w := openTestWAL(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	loop := NewRetryLoop(w, pub, zerolog.Nop())

	for i := int64(1); i <= 3; i++ {
		if _, err := w.Write(ctx, testEvent{UserID: "alice", ItemID: i}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	res := loop.RunPass(ctx)
	if res.Pending != 3 || res.Delivered != 3 {
		t.Errorf("RunPass() = %+v, want 3 pending, 3 delivered", res)
	}
	if pending, _ := w.GetPending(ctx); len(pending) != 0 { //nolint:errcheck // length check
		t.Errorf("pending after pass = %d, want 0", len(pending))
	}
}

func TestRetryLoop_BackoffAndDrop(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxRetries = 2
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	loop := NewRetryLoop(w, pub, zerolog.Nop())

	clock := time.Now()
	loop.now = func() time.Time { return clock }

	if _, err := w.Write(ctx, testEvent{UserID: "bob", ItemID: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if res := loop.RunPass(ctx); res.Failed != 1 {
		t.Fatalf("first pass = %+v, want 1 failed", res)
	}

	// Inside the backoff window.
	if res := loop.RunPass(ctx); res.Skipped != 1 {
		t.Errorf("second pass = %+v, want 1 skipped", res)
	}

	clock = clock.Add(time.Minute)
	if res := loop.RunPass(ctx); res.Failed != 1 {
		t.Errorf("third pass = %+v, want 1 failed", res)
	}

	// Two attempts recorded: the next pass drops it.
	clock = clock.Add(time.Minute)
	if res := loop.RunPass(ctx); res.Dropped != 1 {
		t.Errorf("fourth pass = %+v, want 1 dropped", res)
	}
	if pending, _ := w.GetPending(ctx); len(pending) != 0 { //nolint:errcheck // length check
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestRetryLoop_DropsExpired(t *testing.T) {
	t.Parallel()

	w := openTestWAL(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	loop := NewRetryLoop(w, pub, zerolog.Nop())
	loop.now = func() time.Time { return time.Now().Add(w.Config().EntryTTL + time.Hour) }

	if _, err := w.Write(ctx, testEvent{UserID: "carol", ItemID: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res := loop.RunPass(ctx); res.Dropped != 1 {
		t.Errorf("RunPass() = %+v, want 1 dropped", res)
	}
	if pub.count() != 0 {
		t.Errorf("delivered = %d, want 0", pub.count())
	}
}

func TestRetryLoop_SkipsClaimed(t *testing.T) {
	t.Parallel()

	w := openTestWAL(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	loop := NewRetryLoop(w, pub, zerolog.Nop())

	id, err := w.WriteClaimed(ctx, testEvent{UserID: "dan", ItemID: 1})
	if err != nil {
		t.Fatalf("WriteClaimed() error = %v", err)
	}
	if res := loop.RunPass(ctx); res.Skipped != 1 || pub.count() != 0 {
		t.Errorf("RunPass() = %+v delivered %d, want 1 skipped", res, pub.count())
	}

	w.ReleaseEntry(id)
	if res := loop.RunPass(ctx); res.Delivered != 1 {
		t.Errorf("RunPass() after release = %+v, want 1 delivered", res)
	}
}

func TestRetryLoop_ServeRecoversAndStops(t *testing.T) {
	t.Parallel()

	w := openTestWAL(t)
	pub := &recordingPublisher{}
	loop := NewRetryLoop(w, pub, zerolog.Nop())

	if _, err := w.Write(context.Background(), testEvent{UserID: "eve", ItemID: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count() != 1 {
		t.Fatalf("delivered = %d, want 1 from the recovery pass", pub.count())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if loop.String() != "wal-retry" {
		t.Errorf("String() = %q", loop.String())
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{12, maxBackoff},
		{100, maxBackoff},
	}
	for _, tt := range tests {
		if got := Backoff(time.Second, tt.attempts); got != tt.want {
			t.Errorf("Backoff(1s, %d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

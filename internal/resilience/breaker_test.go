// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker[int](BreakerConfig{
		Name:             "test-opens",
		FailureThreshold: 2,
		Timeout:          time.Minute,
	}, zerolog.Nop())

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := b.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("Execute() #%d error = %v, want boom", i, err)
		}
	}

	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if !IsRejected(err) {
		t.Errorf("Execute() on open breaker error = %v, want rejection", err)
	}
	if called {
		t.Error("open breaker must not call the wrapped function")
	}
}

func TestBreaker_Success(t *testing.T) {
	t.Parallel()

	b := NewBreaker[string](BreakerConfig{Name: "test-success"}, zerolog.Nop())
	got, err := b.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("Execute() = %q, %v", got, err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed", b.State())
	}
	if b.Name() != "test-success" {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestStateConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		value float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := StateString(tt.state); got != tt.str {
			t.Errorf("StateString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := StateValue(tt.state); got != tt.value {
			t.Errorf("StateValue(%v) = %v, want %v", tt.state, got, tt.value)
		}
	}
}

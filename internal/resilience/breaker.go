// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package resilience builds circuit breakers with logging and metrics hooks.
//
// The recommendation engine wraps every channel in its own breaker so that a
// failing channel stops being called for a while; the HTTP embedding client
// wraps the remote embedding service the same way.
package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/atelier/internal/metrics"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxRequests is the number of probe requests allowed in half-open state.
	// Default: 1
	MaxRequests uint32

	// Interval resets counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// Default: 30s
	Timeout time.Duration

	// FailureThreshold opens the breaker after this many consecutive failures.
	// Default: 5
	FailureThreshold uint32
}

// Breaker is a typed circuit breaker.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// NewBreaker creates a circuit breaker that logs transitions and exports
// circuit_breaker_* metrics under cfg.Name.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreaker[T any](cfg BreakerConfig, logger zerolog.Logger) *Breaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(0)

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", StateString(from)).
				Str("to", StateString(to)).
				Msg("circuit breaker state transition")
			metrics.RecordBreakerTransition(name, StateString(from), StateString(to), StateValue(to))
		},
	}

	return &Breaker[T]{
		cb:   gobreaker.NewCircuitBreaker[T](settings),
		name: cfg.Name,
	}
}

// Name returns the breaker name.
func (b *Breaker[T]) Name() string { return b.name }

// State returns the current state as a string.
func (b *Breaker[T]) State() string { return StateString(b.cb.State()) }

// Execute runs fn through the breaker. Rejections return an error matching
// IsRejected.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	counts := b.cb.Counts()

	switch {
	case err == nil:
		metrics.RecordBreakerResult(b.name, "success", 0)
	case IsRejected(err):
		metrics.RecordBreakerResult(b.name, "rejected", counts.ConsecutiveFailures)
	default:
		metrics.RecordBreakerResult(b.name, "failure", counts.ConsecutiveFailures)
	}
	return result, err
}

// IsRejected reports whether err was produced by an open or saturated breaker
// rather than by the wrapped call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// StateValue converts circuit breaker state to a numeric metric value.
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// StateString converts circuit breaker state to a string for logging.
func StateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

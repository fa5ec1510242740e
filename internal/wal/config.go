// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package wal

import (
	"errors"
	"time"
)

// Config configures the outbox store and its retry loop.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path     string
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// RetryInterval is the retry loop tick.
	RetryInterval time.Duration

	// RetryBackoff is the base of the per-entry exponential backoff.
	RetryBackoff time.Duration

	// MaxRetries drops an entry after this many failed attempts.
	MaxRetries int

	// EntryTTL drops entries older than this regardless of attempts.
	EntryTTL time.Duration

	// PublishTimeout bounds one replay publish.
	PublishTimeout time.Duration

	// GCInterval runs value log GC. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns durable production defaults.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		RetryInterval:  30 * time.Second,
		RetryBackoff:   time.Second,
		MaxRetries:     10,
		EntryTTL:       24 * time.Hour,
		PublishTimeout: 10 * time.Second,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return errors.New("wal: path is required unless in_memory is set")
	}
	if c.RetryInterval <= 0 {
		return errors.New("wal: retry interval must be positive")
	}
	if c.RetryBackoff <= 0 {
		return errors.New("wal: retry backoff must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("wal: max retries must be at least 1")
	}
	if c.EntryTTL <= 0 {
		return errors.New("wal: entry TTL must be positive")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("wal: publish timeout must be positive")
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return errors.New("wal: gc discard ratio must be in (0, 1)")
	}
	return nil
}

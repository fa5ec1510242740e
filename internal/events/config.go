// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"errors"
	"fmt"
	"time"
)

// Transport names.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Config configures the bus transport and router.
type Config struct {
	Transport string
	Topic     string

	// NATS settings, used when Transport is nats.
	NATSURL       string
	QueueGroup    string
	Subscribers   int
	MaxReconnects int
	ReconnectWait time.Duration

	// OutputBuffer is the gochannel subscriber buffer size.
	OutputBuffer int64

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	CloseTimeout time.Duration

	// PoisonTopic receives events that failed every retry. Empty drops them.
	PoisonTopic string

	// DedupTTL drops redelivered events with a seen ID. Zero disables it.
	DedupTTL time.Duration
}

// DefaultConfig returns in-process defaults.
func DefaultConfig() Config {
	return Config{
		Transport:            TransportGoChannel,
		Topic:                DefaultTopic,
		QueueGroup:           "atelier",
		Subscribers:          1,
		MaxReconnects:        -1,
		ReconnectWait:        2 * time.Second,
		OutputBuffer:         1024,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
		CloseTimeout:         30 * time.Second,
		DedupTTL:             10 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportGoChannel:
	case TransportNATS:
		if c.NATSURL == "" {
			return errors.New("events: nats transport requires a URL")
		}
	default:
		return fmt.Errorf("events: unknown transport %q", c.Transport)
	}
	if c.Topic == "" {
		return errors.New("events: topic is required")
	}
	if c.PoisonTopic != "" && c.PoisonTopic == c.Topic {
		return errors.New("events: poison topic must differ from topic")
	}
	if c.Subscribers < 1 {
		return errors.New("events: subscribers must be at least 1")
	}
	if c.RetryMaxRetries < 0 {
		return errors.New("events: retry_max_retries must not be negative")
	}
	return nil
}

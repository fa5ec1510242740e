// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/events"
	"github.com/tomtom215/atelier/internal/interactions"
)

type nopApplier struct{}

func (nopApplier) RecordInteractions(context.Context, string, []interactions.Entry) error {
	return nil
}

func TestBuildRouterConfig(t *testing.T) {
	t.Parallel()

	t.Run("no auth", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.Security.RateLimitReqs = 7
		cfg.Security.CORSOrigins = []string{"https://gallery.example"}

		rc, err := buildRouterConfig(cfg)
		if err != nil {
			t.Fatalf("buildRouterConfig() error = %v", err)
		}
		if rc.Verifier != nil {
			t.Error("Verifier set with auth_mode none")
		}
		if rc.Middleware.RateLimitRequests != 7 {
			t.Errorf("RateLimitRequests = %d", rc.Middleware.RateLimitRequests)
		}
		if len(rc.Middleware.CORSAllowedOrigins) != 1 {
			t.Errorf("CORSAllowedOrigins = %v", rc.Middleware.CORSAllowedOrigins)
		}
	})

	t.Run("jwt", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.Security.AuthMode = "jwt"
		cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"

		rc, err := buildRouterConfig(cfg)
		if err != nil {
			t.Fatalf("buildRouterConfig() error = %v", err)
		}
		if rc.Verifier == nil {
			t.Error("Verifier not set with auth_mode jwt")
		}
	})

	t.Run("jwt without secret", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.Security.AuthMode = "jwt"

		if _, err := buildRouterConfig(cfg); err == nil {
			t.Error("buildRouterConfig() error = nil")
		}
	})
}

func TestEventsConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Events.PoisonTopic = "atelier.poison"
	cfg.Events.DedupTTL = time.Minute

	ec := eventsConfig(cfg)
	if ec.Transport != "gochannel" || ec.Topic != cfg.Events.Topic {
		t.Errorf("transport/topic = %s/%s", ec.Transport, ec.Topic)
	}
	if ec.PoisonTopic != "atelier.poison" || ec.DedupTTL != time.Minute {
		t.Errorf("poison/dedup = %s/%v", ec.PoisonTopic, ec.DedupTTL)
	}
	if ec.RetryMultiplier != 2.0 || ec.MaxReconnects != -1 {
		t.Errorf("defaults not kept: multiplier %v, reconnects %d", ec.RetryMultiplier, ec.MaxReconnects)
	}
	if err := ec.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestInitEvents(t *testing.T) {
	t.Parallel()

	bus, err := initEvents(config.Default(), nopApplier{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("initEvents() error = %v", err)
	}
	defer bus.Close()

	router, err := bus.NewRouter()
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if err := router.Close(); err != nil {
		t.Errorf("router Close() error = %v", err)
	}
}

func TestInitEvents_Outbox(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Events.Outbox.Enabled = true
	cfg.Events.Outbox.InMemory = true
	cfg.Events.Outbox.SyncWrites = false

	bus, err := initEvents(cfg, nopApplier{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("initEvents() error = %v", err)
	}
	defer bus.Close()

	if bus.Retry == nil || bus.outbox == nil {
		t.Fatal("outbox enabled but retry loop or store missing")
	}
	if _, ok := bus.API.(*events.DurablePublisher); !ok {
		t.Errorf("API publisher = %T, want *events.DurablePublisher", bus.API)
	}
	if got := outboxConfig(cfg); got.MaxRetries != cfg.Events.Outbox.MaxRetries || !got.InMemory {
		t.Errorf("outboxConfig() = %+v", got)
	}
}

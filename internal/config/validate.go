// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tomtom215/atelier/internal/validation"
)

// minJWTSecretLength is the minimum HMAC secret length in jwt mode.
const minJWTSecretLength = 32

// Validate checks struct tags, then cross-field rules, then the engine config.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.AuthMode == "jwt" && len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("ATELIER_JWT_SECRET must be at least %d characters when ATELIER_AUTH_MODE=jwt", minJWTSecretLength)
	}
	if c.IsProduction() {
		if c.Security.AuthMode == "none" {
			return errors.New("ATELIER_AUTH_MODE=none is not allowed in production")
		}
		if slices.Contains(c.Security.CORSOrigins, "*") {
			return errors.New("ATELIER_CORS_ORIGINS must not contain * in production")
		}
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	switch e.Provider {
	case "static":
		if e.StaticPath == "" {
			return errors.New("ATELIER_EMBEDDING_STATIC is required when ATELIER_EMBEDDING_PROVIDER=static")
		}
	case "http":
		if e.Endpoint == "" {
			return errors.New("ATELIER_EMBEDDING_ENDPOINT is required when ATELIER_EMBEDDING_PROVIDER=http")
		}
		if e.Model == "" {
			return errors.New("ATELIER_EMBEDDING_MODEL is required when ATELIER_EMBEDDING_PROVIDER=http")
		}
		if e.Dimensions < 1 {
			return errors.New("ATELIER_EMBEDDING_DIMENSIONS must be positive when ATELIER_EMBEDDING_PROVIDER=http")
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.StatePath == "" {
		return errors.New("ATELIER_STATE_PATH is required unless ATELIER_STATE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Transport == "nats" && c.Events.NATSURL == "" {
		return errors.New("ATELIER_NATS_URL is required when ATELIER_EVENTS_TRANSPORT=nats")
	}
	if c.Events.PoisonTopic != "" && c.Events.PoisonTopic == c.Events.Topic {
		return errors.New("events.poison_topic must differ from events.topic")
	}
	if o := c.Events.Outbox; o.Enabled && !o.InMemory && o.Path == "" {
		return errors.New("ATELIER_OUTBOX_PATH is required when the outbox is enabled")
	}
	return nil
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/recommend"
)

// Recommender is the engine surface the handlers use.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.PageRequest) (*recommend.Page, error)
	RecordInteractions(ctx context.Context, userID string, entries []interactions.Entry) error
	SetPreferences(ctx context.Context, userID string, prefs recommend.Preferences) error
	State(ctx context.Context, userID string) (*recommend.SessionState, error)
	Status() recommend.EngineStatus
}

// ItemCatalog resolves item metadata.
type ItemCatalog interface {
	Item(id int64) (catalog.Item, bool)
	Title(id int64) string
	Has(id int64) bool
	Len() int
}

// InteractionPublisher hands interactions to the event bus.
type InteractionPublisher interface {
	PublishInteractions(ctx context.Context, userID string, entries []interactions.Entry) error
}

// HandlerConfig tunes request handling.
type HandlerConfig struct {
	// RequestTimeout bounds engine calls made by a handler.
	RequestTimeout time.Duration

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// Version is reported by the status endpoint.
	Version string
}

// DefaultHandlerConfig returns the handler defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RequestTimeout: 10 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

// Handler serves the API endpoints.
type Handler struct {
	engine    Recommender
	items     ItemCatalog
	publisher InteractionPublisher
	config    HandlerConfig
	logger    zerolog.Logger
	startedAt time.Time
	now       func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPublisher routes interactions through the event bus instead of
// applying them to the engine synchronously.
func WithPublisher(p InteractionPublisher) HandlerOption {
	return func(h *Handler) { h.publisher = p }
}

// WithHandlerConfig overrides the handler defaults.
func WithHandlerConfig(cfg HandlerConfig) HandlerOption {
	return func(h *Handler) { h.config = cfg }
}

// NewHandler creates a Handler. items may be nil, which disables item
// lookups and titles in CSV output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(engine Recommender, items ItemCatalog, logger zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:    engine,
		items:     items,
		config:    DefaultHandlerConfig(),
		logger:    logger.With().Str("component", "api").Logger(),
		startedAt: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.config.RequestTimeout <= 0 {
		h.config.RequestTimeout = DefaultHandlerConfig().RequestTimeout
	}
	if h.config.MaxBodyBytes <= 0 {
		h.config.MaxBodyBytes = DefaultHandlerConfig().MaxBodyBytes
	}
	return h
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.config.RequestTimeout)
}

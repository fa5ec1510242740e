// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/atelier/internal/cache"
)

// consumerHandlerName is the router handler name of the interaction consumer.
const consumerHandlerName = "interactions_consumer"

// Router wraps a Watermill router with the interaction consumer registered.
type Router struct {
	router  *message.Router
	dedup   *expiringKeys
	running atomic.Bool
}

// expiringKeys implements middleware.ExpiringKeyRepository on the TTL cache.
type expiringKeys struct {
	mu   sync.Mutex
	seen *cache.Cache[struct{}]
}

func newExpiringKeys(ttl time.Duration) *expiringKeys {
	return &expiringKeys{seen: cache.New[struct{}](ttl, ttl)}
}

// IsDuplicate records key and reports whether it was already present.
func (k *expiringKeys) IsDuplicate(_ context.Context, key string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.seen.Get(key); ok {
		return true, nil
	}
	k.seen.Set(key, struct{}{})
	return false, nil
}

// NewRouter builds the router and registers consumer on cfg.Topic.
//
//nolint:gocritic // hugeParam: config read once at startup
func NewRouter(cfg Config, transport *Transport, consumer *Consumer, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.RetryMultiplier <= 0 {
		cfg.RetryMultiplier = 2.0
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	r := &Router{router: wmRouter}

	// Outermost first.
	wmRouter.AddMiddleware(middleware.Recoverer)

	if cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(transport.Publisher, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	if cfg.DedupTTL > 0 {
		r.dedup = newExpiringKeys(cfg.DedupTTL)
		dedup := middleware.Deduplicator{
			KeyFactory: func(msg *message.Message) (string, error) {
				return msg.UUID, nil
			},
			Repository: r.dedup,
		}
		wmRouter.AddMiddleware(dedup.Middleware)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddConsumerHandler(consumerHandlerName, cfg.Topic, transport.Subscriber, consumer.Handle)

	return r, nil
}

// Run blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Running closes once every handler is subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether Run is in progress.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// Close stops the router, waiting up to CloseTimeout for in-flight events.
func (r *Router) Close() error {
	err := r.router.Close()
	if r.dedup != nil {
		r.dedup.seen.Close()
	}
	return err
}

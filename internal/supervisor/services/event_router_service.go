// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// EventRouter is the lifecycle of *events.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterFactory builds a fresh router. A closed watermill router cannot be
// run again, so every restart asks for a new one.
type RouterFactory func() (EventRouter, error)

// EventRouterService runs the interaction event consumer under supervision.
type EventRouterService struct {
	newRouter RouterFactory
	logger    zerolog.Logger
}

// NewEventRouterService wraps newRouter.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEventRouterService(newRouter RouterFactory, logger zerolog.Logger) *EventRouterService {
	return &EventRouterService{
		newRouter: newRouter,
		logger:    logger.With().Str("service", "event-router").Logger(),
	}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.newRouter()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()

	select {
	case err := <-done:
		closeErr := router.Close()
		if err == nil && ctx.Err() == nil {
			err = errors.New("event router stopped unexpectedly")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Join(fmt.Errorf("event router: %w", err), closeErr)

	case <-ctx.Done():
		if err := router.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("event router close")
		}
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("event router exited with error")
		}
		s.logger.Info().Msg("event router stopped")
		return ctx.Err()
	}
}

func (s *EventRouterService) String() string {
	return "event-router"
}

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/api"
	"github.com/tomtom215/atelier/internal/backup"
	"github.com/tomtom215/atelier/internal/bootstrap"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/middleware"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/channels"
	"github.com/tomtom215/atelier/internal/supervisor"
	"github.com/tomtom215/atelier/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("events", cfg.Events.Transport).
		Msg("Starting Atelier")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential startup
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.Logger()

	store, err := bootstrap.OpenStateStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing state store")
			}
		}()
	}

	cat, err := bootstrap.LoadCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	embedder, closeEmbedder, err := bootstrap.BuildEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	deps, err := bootstrap.BuildChannelDeps(ctx, cfg, cat, embedder, logger)
	if err != nil {
		return err
	}

	recCfg := cfg.ToRecommendConfig()
	engineOpts := []recommend.Option{recommend.WithItemLookup(cat)}
	if store != nil {
		engineOpts = append(engineOpts,
			recommend.WithStateStore(store),
			recommend.WithInteractionStore(store))
	}
	if cfg.Storage.InteractedDir != "" {
		files, err := bootstrap.OpenInteractedFiles(cfg.Storage.InteractedDir)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, recommend.WithInteractedStore(files))
	}

	engine, err := recommend.NewEngine(recCfg, channels.NewFactory(deps, recCfg), logger, engineOpts...)
	if err != nil {
		return fmt.Errorf("create recommendation engine: %w", err)
	}

	bus, err := initEvents(cfg, engine, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	handler := api.NewHandler(engine, cat, logger,
		api.WithPublisher(bus.API),
		api.WithHandlerConfig(api.HandlerConfig{
			RequestTimeout: cfg.Server.WriteTimeout,
			MaxBodyBytes:   1 << 20,
			Version:        version,
		}))

	routerCfg, err := buildRouterConfig(cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, routerCfg, logger),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	var gc services.GarbageCollector
	if store != nil && cfg.Storage.GCInterval > 0 {
		gc = store
	}
	tree.AddStorageService(services.NewStorageMaintenanceService(engine, gc, services.MaintenanceConfig{
		FlushInterval:     cfg.Storage.FlushInterval,
		GCInterval:        cfg.Storage.GCInterval,
		GCDiscardRatio:    cfg.Storage.GCDiscardRatio,
		FinalFlushTimeout: cfg.Server.ShutdownTimeout,
	}, logger))
	if store != nil && cfg.Storage.BackupDir != "" && cfg.Storage.BackupInterval > 0 {
		backups, err := bootstrap.OpenBackupManager(cfg, store, logger)
		if err != nil {
			return err
		}
		tree.AddStorageService(backup.NewScheduler(backups, cfg.Storage.BackupInterval))
	}
	if bus.NewRouter != nil {
		tree.AddEventService(services.NewEventRouterService(bus.NewRouter, logger))
	}
	if bus.Retry != nil {
		tree.AddEventService(bus.Retry)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))

	logging.Info().
		Str("addr", server.Addr).
		Int("items", cat.Len()).
		Bool("auth", routerCfg.Verifier != nil).
		Msg("Starting supervisor tree")

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 { //nolint:errcheck // report is best effort
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// The maintenance service flushes on stop; this catches sessions touched
	// by requests drained after it returned.
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if n, err := engine.Flush(flushCtx); err != nil {
		logging.Error().Err(err).Msg("Final session flush failed")
	} else if n > 0 {
		logging.Info().Int("sessions", n).Msg("Final session flush")
	}
	return nil
}

// buildRouterConfig maps security settings onto the router.
func buildRouterConfig(cfg *config.Config) (api.RouterConfig, error) {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mw.RateLimitRequests = cfg.Security.RateLimitReqs
	mw.RateLimitWindow = cfg.Security.RateLimitWindow
	mw.RateLimitDisabled = cfg.Security.RateLimitDisabled

	rc := api.RouterConfig{Middleware: mw}
	if cfg.Security.AuthMode == "jwt" {
		v, err := middleware.NewTokenVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
		if err != nil {
			return api.RouterConfig{}, fmt.Errorf("configure jwt auth: %w", err)
		}
		rc.Verifier = v
	}
	return rc, nil
}

// componentLogger tags startup logs.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func componentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

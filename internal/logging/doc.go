// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package logging provides centralized zerolog-based structured logging for Atelier.
//
// JSON output is used in production and console output during development.
// Library packages receive a zerolog.Logger by value and derive component
// loggers from it; binaries configure the global logger once via Init.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("user", "u42").Msg("page served")
//	logging.Ctx(ctx).Warn().Err(err).Msg("channel degraded")
//
// # Adapters
//
// Two adapters route third-party logging into zerolog:
//
//   - SlogHandler implements slog.Handler for suture's sutureslog event hook
//   - WatermillLogger implements watermill.LoggerAdapter for the event bus
//
// # Context Propagation
//
// Request and correlation IDs travel in context.Context. Ctx(ctx) returns a
// logger with both fields attached when present.
package logging

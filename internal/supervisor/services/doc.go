// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package services adapts server components to suture.Service.
//
//   - HTTPServerService wraps ListenAndServe/Shutdown with a drain timeout.
//   - EventRouterService builds a fresh events router per run and closes it
//     on shutdown.
//   - StorageMaintenanceService flushes dirty sessions on a ticker, runs
//     value log GC, and flushes once more on shutdown.
package services

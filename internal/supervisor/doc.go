// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package supervisor runs the long-lived parts of the server under a suture v4
supervisor tree.

	atelier
	├── storage-layer
	│   └── StorageMaintenanceService (session flush, BadgerDB GC)
	├── events-layer
	│   └── EventRouterService (interaction consumer)
	└── api-layer
	    └── HTTPServerService

Each layer is its own child supervisor, so restarts and backoff are counted
per layer. Supervisor events (service start, panic, backoff) are logged by
sutureslog through a slog handler backed by zerolog.

Services return ctx.Err() on shutdown. Any other return, including nil, is
treated by suture as a crash and the service is restarted.

The in-memory catalog, vector indexes and the recommendation engine are
plain values built in main and are not supervised.
*/
package supervisor

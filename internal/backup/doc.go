// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package backup writes and restores backups of the session state store.
//
// A backup is a gzip-compressed BadgerDB backup stream in the backup
// directory, named state-<UTC timestamp>-<id prefix>.bak.gz, plus an entry in
// backups.json carrying its SHA-256 checksum and size:
//
//	┌───────────┐     ┌──────────┐     ┌────────────────────────────┐
//	│ Scheduler │────▶│ Manager  │────▶│ <dir>/state-*.bak.gz       │
//	└───────────┘     └──────────┘     │ <dir>/backups.json         │
//	                       │           └────────────────────────────┘
//	                       ▼
//	                 BadgerStore.Backup / Restore
//
// The Scheduler runs in the storage layer of the supervisor tree and applies
// the retention policy after every backup. Restores are offline: stop the
// server and restore into an empty state directory with
// "atelierctl state restore".
package backup

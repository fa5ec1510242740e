// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package storage persists recommendation state.
//
// Three stores live here:
//
//   - Store keeps versioned snapshots of derived data such as the cold-start
//     facet table, gob-encoded, gzip-compressed and guarded by a SHA-256
//     checksum.
//   - BadgerStore keeps session state and interaction logs in BadgerDB. It
//     implements recommend.StateStore and recommend.InteractionStore.
//   - InteractedFiles writes the capped interacted set of each user to a
//     plain text file, one item ID per line. It implements
//     recommend.InteractedStore.
//
// # Snapshot Format
//
//	filename: {name}_v{version}.gob.gz
//
//	structure:
//	  - Metadata (SnapshotMetadata)
//	  - CompressedData (gzip-compressed gob-encoded payload)
//
// Load with version 0 reads the latest version. A checksum mismatch is an
// error; callers rebuild the snapshot.
//
// # Badger Keys
//
//	session:<user>                     JSON SessionState
//	interactions:<user>\x00<sequence>  JSON Entry, in append order
//
// # Thread Safety
//
// All stores are safe for concurrent use.
package storage

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

/*
Package models defines the wire types shared by the HTTP API and its clients.

Every HTTP endpoint answers with an APIResponse envelope:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "...", "query_time_ms": 3}
	}

Errors use the same envelope with status "error" and a populated APIError.
The recommendation domain types themselves (pages, session state) live in
internal/recommend and are embedded as Data.
*/
package models

// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the whole process. Field names in
// errors come from json tags so messages match what API clients send.
//
// # Custom Tags
//
//   - userid: printable, no slashes, NUL or whitespace
//   - tagtype: one of style, theme, movement, other
//
// # Usage
//
//	type PreferencesRequest struct {
//	    Styles []string `json:"styles" validate:"max=50,dive,max=200"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
package validation

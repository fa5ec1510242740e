// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/middleware"
	"github.com/tomtom215/atelier/internal/models"
	"github.com/tomtom215/atelier/internal/validation"
)

// sanitizeLogValue escapes control characters so user input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON sends a JSON envelope. Recommendation pages are per-request
// state, so responses are never cacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}, start time.Time) {
	resp := models.Success(data, middleware.GetRequestID(r.Context()))
	if !start.IsZero() {
		resp.Metadata.QueryTimeMS = time.Since(start).Milliseconds()
	}
	respondJSON(w, status, resp)
}

// respondError sends an error envelope and logs err when present.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, models.Failure(&models.APIError{
		Code:    code,
		Message: message,
	}, middleware.GetRequestID(r.Context())))
}

// respondDomainError classifies err and sends the matching error envelope.
func respondDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := classifyError(err)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	respondError(w, r, status, code, message, err)
}

// respondValidation sends a 400 with per-field details.
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.ValidationErrors) {
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, models.Failure(&models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}, middleware.GetRequestID(r.Context())))
}

// validateRequest validates v and writes the error response on failure.
// It reports whether the handler may continue.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		respondValidation(w, r, verr)
		return false
	}
	return true
}

// decodeJSONBody decodes a bounded request body into v, rejecting unknown
// fields and trailing data.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON body: trailing data")
	}
	return nil
}

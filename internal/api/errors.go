// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = validation.CodeValidation
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

// ErrPublisherUnavailable is returned when interactions cannot be handed off.
var ErrPublisherUnavailable = errors.New("interaction publisher unavailable")

// classifyError maps domain errors onto an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrUnknownUser):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, catalog.ErrUnknownItem):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, ErrPublisherUnavailable):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

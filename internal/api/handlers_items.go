// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/atelier/internal/validation"
)

// validationForUser checks a user ID path parameter.
func validationForUser(userID string) *validation.ValidationErrors {
	return validation.ValidateVar("user_id", userID, "required,max=128,userid")
}

// GetItem handles GET /api/v1/items/{itemID}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "item id must be an integer", nil)
		return
	}
	if h.items == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, "catalog not loaded", nil)
		return
	}

	item, ok := h.items.Item(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "item not found", nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, item, time.Time{})
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	view := StatusView{
		EngineStatus:  h.engine.Status(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Version:       h.config.Version,
	}
	if h.items != nil {
		view.CatalogItems = h.items.Len()
	}
	respondSuccess(w, r, http.StatusOK, view, time.Time{})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

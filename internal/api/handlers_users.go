// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/middleware"
	"github.com/tomtom215/atelier/internal/recommend"
)

// parsePageQuery reads and validates the page endpoint parameters. It
// writes the error response and returns false on failure.
func (h *Handler) parsePageQuery(w http.ResponseWriter, r *http.Request) (PageQuery, bool) {
	q := PageQuery{UserID: chi.URLParam(r, "userID")}

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "page must be an integer", nil)
			return q, false
		}
		q.Page = n
	}
	if v := r.URL.Query().Get("behavior_updated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "behavior_updated must be a boolean", nil)
			return q, false
		}
		q.BehaviorUpdated = b
	}

	return q, validateRequest(w, r, &q)
}

// nextPage runs the engine for a validated query.
func (h *Handler) nextPage(r *http.Request, q PageQuery) (*recommend.Page, error) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	return h.engine.Recommend(ctx, recommend.PageRequest{
		UserID:          q.UserID,
		Timestamp:       h.now().UTC(),
		BehaviorUpdated: q.BehaviorUpdated,
		PageIndex:       q.Page,
		RequestID:       middleware.GetRequestID(r.Context()),
	})
}

// GetPage handles GET /api/v1/users/{userID}/page.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, ok := h.parsePageQuery(w, r)
	if !ok {
		return
	}

	page, err := h.nextPage(r, q)
	if err != nil {
		respondDomainError(w, r, "failed to build recommendation page", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, page, start)
}

// GetPageCSV handles GET /api/v1/users/{userID}/page.csv.
func (h *Handler) GetPageCSV(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parsePageQuery(w, r)
	if !ok {
		return
	}

	page, err := h.nextPage(r, q)
	if err != nil {
		respondDomainError(w, r, "failed to build recommendation page", err)
		return
	}

	var titles recommend.Titler
	if h.items != nil {
		titles = h.items
	}

	var buf bytes.Buffer
	if err := recommend.WriteCSV(&buf, page, titles); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to encode page", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("page-%d.csv", page.PageIndex)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug().Err(err).Msg("write csv response")
	}
}

// PostInteractions handles POST /api/v1/users/{userID}/interactions.
func (h *Handler) PostInteractions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if verr := validationForUser(userID); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	var req InteractionsRequest
	if err := decodeJSONBody(w, r, &req, h.config.MaxBodyBytes); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	entries := req.Entries(h.now())
	if h.items != nil {
		for _, en := range entries {
			if !h.items.Has(en.ItemID) {
				respondDomainError(w, r, "", fmt.Errorf("%w: %d", catalog.ErrUnknownItem, en.ItemID))
				return
			}
		}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	queued := h.publisher != nil
	var err error
	if queued {
		err = h.publisher.PublishInteractions(ctx, userID, entries)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrPublisherUnavailable, err)
		}
	} else {
		err = h.engine.RecordInteractions(ctx, userID, entries)
	}
	if err != nil {
		respondDomainError(w, r, "failed to record interactions", err)
		return
	}

	respondSuccess(w, r, http.StatusAccepted, InteractionsAccepted{
		UserID:   userID,
		Accepted: len(entries),
		Queued:   queued,
	}, time.Time{})
}

// PutPreferences handles PUT /api/v1/users/{userID}/preferences.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if verr := validationForUser(userID); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	var req PreferencesRequest
	if err := decodeJSONBody(w, r, &req, h.config.MaxBodyBytes); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	prefs := req.Preferences()
	if err := h.engine.SetPreferences(ctx, userID, prefs); err != nil {
		respondDomainError(w, r, "failed to store preferences", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, prefs, time.Time{})
}

// GetState handles GET /api/v1/users/{userID}/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if verr := validationForUser(userID); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	st, err := h.engine.State(ctx, userID)
	if err != nil {
		respondDomainError(w, r, "failed to load state", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, newStateView(st), time.Time{})
}

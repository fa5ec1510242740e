// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/atelier/internal/middleware"
)

// RouterConfig selects the router middleware.
type RouterConfig struct {
	Middleware *ChiMiddlewareConfig

	// Verifier enables bearer-token auth on user routes when non-nil.
	Verifier *middleware.TokenVerifier

	// MetricsHandler serves /metrics. Nil uses promhttp.Handler().
	MetricsHandler http.Handler
}

// NewRouter builds the chi router for h.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	mw := NewChiMiddleware(cfg.Middleware)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Applied to all routes, outermost first.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.PrometheusMetrics)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Get("/status", h.GetStatus)
		r.Get("/items/{itemID}", h.GetItem)

		r.Route("/users/{userID}", func(r chi.Router) {
			if cfg.Verifier != nil {
				r.Use(middleware.BearerAuth(cfg.Verifier))
			}
			r.Get("/page", h.GetPage)
			r.Get("/page.csv", h.GetPageCSV)
			r.Post("/interactions", h.PostInteractions)
			r.Put("/preferences", h.PutPreferences)
			r.Get("/state", h.GetState)
		})
	})

	return r
}

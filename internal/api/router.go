// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route onto a chi router.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitHealth))
		r.Use(SecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(Metrics())
		r.Use(mw.RequireAPIKey())

		if h.deps.WebSocket != nil {
			r.Handle("/ws", h.deps.WebSocket)
		}

		r.Get("/shows", h.ListBindings)
		r.Post("/shows", h.UpsertBinding)
		r.Route("/shows/{slug}", func(r chi.Router) {
			r.Get("/", h.GetBinding)
			r.Delete("/", h.DeleteBinding)
			r.Put("/scheduled", h.SetScheduled)
			r.Get("/overrides", h.ListOverrides)
			r.Post("/overrides", h.SetOverride)
			r.Delete("/overrides", h.DeleteOverride)
			r.Get("/unresolved", h.ListUnresolved)
			r.Get("/status", h.ShowStatus)
			r.With(mw.RateLimitCustom(RateLimitRun)).Post("/run", h.TriggerShow)
		})

		r.Get("/unresolved", h.ListUnresolved)

		r.Get("/runs", h.RunsOverview)
		r.With(mw.RateLimitCustom(RateLimitRun)).Post("/runs", h.TriggerAll)

		r.Get("/lists", h.ListLists)
		r.Delete("/lists/{slug}/{type}", h.DeleteList)
		r.Get("/orphans", h.Orphans)

		r.Get("/catalog/search", h.CatalogSearch)
		r.Get("/catalog/{slug}/counts", h.CatalogCounts)

		r.Post("/kometa/export", h.KometaExport)
	})

	return r
}

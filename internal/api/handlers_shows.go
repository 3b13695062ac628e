// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/validation"
)

// showSlug reads and checks the {slug} URL parameter.
func showSlug(w http.ResponseWriter, r *http.Request) (string, bool) {
	slug := chi.URLParam(r, "slug")
	if !validation.IsSlug(slug) {
		respondError(w, http.StatusBadRequest, "INVALID_SLUG", "slug must be a lower-case catalog slug such as one-piece", nil)
		return "", false
	}
	return slug, true
}

// ListBindings handles GET /api/v1/shows.
func (h *Handler) ListBindings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	bindings, err := h.deps.Store.ListBindings(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if bindings == nil {
		bindings = []models.ShowBinding{}
	}
	respondData(w, http.StatusOK, bindings, start)
}

// GetBinding handles GET /api/v1/shows/{slug}.
func (h *Handler) GetBinding(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	b, err := h.deps.Store.GetBinding(r.Context(), slug)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, b, start)
}

// UpsertBinding handles POST /api/v1/shows. New bindings are scheduled
// unless the request says otherwise; updates keep the current flag.
func (h *Handler) UpsertBinding(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.BindingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	existing, err := h.deps.Store.GetBinding(ctx, req.Slug)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		respondErr(w, err)
		return
	}
	status := http.StatusCreated
	b := &models.ShowBinding{Slug: req.Slug, Scheduled: true}
	if existing != nil {
		status = http.StatusOK
		b = existing
	}
	b.LibraryTitle = strings.TrimSpace(req.LibraryTitle)
	if req.Scheduled != nil {
		b.Scheduled = *req.Scheduled
	}
	if req.TraktShowID > 0 {
		b.TraktShowID = req.TraktShowID
	}
	b.CleanupRules = req.CleanupRules(b.CleanupRules)

	if err := h.deps.Store.UpsertBinding(ctx, b); err != nil {
		respondErr(w, err)
		return
	}
	logging.Ctx(ctx).Info().Str("show", b.Slug).Str("library_title", sanitizeLogValue(b.LibraryTitle)).Msg("Show binding saved")
	respondData(w, status, b, start)
}

// DeleteBinding handles DELETE /api/v1/shows/{slug}.
func (h *Handler) DeleteBinding(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	if err := h.deps.Store.RemoveBinding(r.Context(), slug); err != nil {
		respondErr(w, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("show", slug).Msg("Show binding removed")
	respondData(w, http.StatusOK, map[string]string{"slug": slug}, start)
}

type scheduledRequest struct {
	Scheduled *bool `json:"scheduled" validate:"required"`
}

// SetScheduled handles PUT /api/v1/shows/{slug}/scheduled.
func (h *Handler) SetScheduled(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	var req scheduledRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.deps.Store.SetScheduled(r.Context(), slug, *req.Scheduled)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, b, start)
}

// ListOverrides handles GET /api/v1/shows/{slug}/overrides.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	overrides, err := h.deps.Store.ListOverrides(r.Context(), slug)
	if err != nil {
		respondErr(w, err)
		return
	}
	if overrides == nil {
		overrides = []models.TitleOverride{}
	}
	respondData(w, http.StatusOK, overrides, start)
}

type overrideResponse struct {
	Override models.TitleOverride     `json:"override"`
	Pending  []models.UnresolvedMatch `json:"pending"`
	RunID    string                   `json:"run_id,omitempty"`
}

// SetOverride handles POST /api/v1/shows/{slug}/overrides: it stores a
// catalog title -> tracked title correction and, with rerun set, starts a
// run of the show right away. Pending lists the unresolved records the
// override targets; they are cleared by the next run that matches them.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	var req models.OverrideRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.deps.Store.GetBinding(ctx, slug); err != nil {
		respondErr(w, err)
		return
	}
	o := &models.TitleOverride{
		Slug:         slug,
		CatalogTitle: strings.TrimSpace(req.CatalogTitle),
		TrackedTitle: strings.TrimSpace(req.TrackedTitle),
	}
	if err := h.deps.Store.SetOverride(ctx, o); err != nil {
		respondErr(w, err)
		return
	}
	logging.Ctx(ctx).Info().
		Str("show", slug).
		Str("catalog_title", sanitizeLogValue(o.CatalogTitle)).
		Str("tracked_title", sanitizeLogValue(o.TrackedTitle)).
		Msg("Title override saved")

	resp := overrideResponse{Override: *o, Pending: []models.UnresolvedMatch{}}
	unresolved, err := h.deps.Store.ListUnresolvedForShow(ctx, slug)
	if err != nil {
		respondErr(w, err)
		return
	}
	for _, u := range unresolved {
		if u.CatalogTitle == o.CatalogTitle && (req.Type == "" || u.Type == req.Type) {
			resp.Pending = append(resp.Pending, u)
		}
	}

	if req.Rerun {
		id, err := h.deps.Runner.TriggerShow(ctx, slug, h.deps.DryRun)
		if err != nil {
			respondErr(w, err)
			return
		}
		resp.RunID = id
	}
	respondData(w, http.StatusOK, resp, start)
}

// DeleteOverride handles DELETE /api/v1/shows/{slug}/overrides?catalog_title=.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	title := r.URL.Query().Get("catalog_title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "catalog_title is required", nil)
		return
	}
	if err := h.deps.Store.DeleteOverride(r.Context(), slug, title); err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"slug": slug, "catalog_title": title}, start)
}

// ListUnresolved handles GET /api/v1/unresolved and
// GET /api/v1/shows/{slug}/unresolved.
func (h *Handler) ListUnresolved(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var (
		out []models.UnresolvedMatch
		err error
	)
	if chi.URLParam(r, "slug") != "" {
		slug, ok := showSlug(w, r)
		if !ok {
			return
		}
		out, err = h.deps.Store.ListUnresolvedForShow(r.Context(), slug)
	} else {
		out, err = h.deps.Store.ListUnresolved(r.Context())
	}
	if err != nil {
		respondErr(w, err)
		return
	}

	if typ := r.URL.Query().Get("type"); typ != "" {
		t, perr := models.ParseEpisodeType(typ)
		if perr != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", perr.Error(), nil)
			return
		}
		filtered := out[:0]
		for _, u := range out {
			if u.Type == t {
				filtered = append(filtered, u)
			}
		}
		out = filtered
	}
	if out == nil {
		out = []models.UnresolvedMatch{}
	}
	respondData(w, http.StatusOK, out, start)
}

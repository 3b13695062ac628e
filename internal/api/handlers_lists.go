// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/reconcile"
)

// ListLists handles GET /api/v1/lists. With source=cache the local cache is
// returned without calling the tracking service.
func (h *Handler) ListLists(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var (
		lists []models.RemoteList
		err   error
	)
	if r.URL.Query().Get("source") == "cache" {
		lists, err = h.deps.Store.ListRemoteLists(r.Context())
	} else {
		if h.deps.Lists == nil {
			unavailable(w, "Tracking service")
			return
		}
		lists, err = h.deps.Lists.Lists(r.Context())
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	if lists == nil {
		lists = []models.RemoteList{}
	}
	respondData(w, http.StatusOK, lists, start)
}

// DeleteList handles DELETE /api/v1/lists/{slug}/{type}. This is the only
// path that removes a remote list.
func (h *Handler) DeleteList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Lists == nil {
		unavailable(w, "Tracking service")
		return
	}
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	t, err := models.ParseEpisodeType(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	deleted, err := h.deps.Lists.Delete(r.Context(), slug, t)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, deleted, start)
}

// Orphans handles GET /api/v1/orphans. It reports and never deletes.
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Library == nil {
		unavailable(w, "Plex library")
		return
	}
	report, err := reconcile.ScanOrphans(r.Context(), h.deps.Library, h.deps.Store)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, report, start)
}

// CatalogSearch handles GET /api/v1/catalog/search?q=.
func (h *Handler) CatalogSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Catalog == nil {
		unavailable(w, "Catalog")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" || len(q) > 200 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q must be 1 to 200 characters", nil)
		return
	}
	shows, err := h.deps.Catalog.Search(r.Context(), q)
	if err != nil {
		respondErr(w, err)
		return
	}
	if shows == nil {
		shows = []models.CatalogShow{}
	}
	respondData(w, http.StatusOK, shows, start)
}

// CatalogCounts handles GET /api/v1/catalog/{slug}/counts.
func (h *Handler) CatalogCounts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Catalog == nil {
		unavailable(w, "Catalog")
		return
	}
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	counts, err := h.deps.Catalog.TypeCounts(r.Context(), slug)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, counts, start)
}

type exportRequest struct {
	Force bool `json:"force"`
}

// KometaExport handles POST /api/v1/kometa/export. The file lists the
// cached remote lists; run a sync first for fresh data.
func (h *Handler) KometaExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Exporter == nil {
		unavailable(w, "Kometa export")
		return
	}
	var req exportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lists, err := h.deps.Store.ListRemoteLists(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	res, err := h.deps.Exporter.Export(r.Context(), lists, req.Force)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusOK, res, start)
}

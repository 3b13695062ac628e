// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/episodarr/internal/coordinator"
	"github.com/tomtom215/episodarr/internal/models"
)

type runRequest struct {
	DryRun *bool `json:"dry_run"`
}

type runAccepted struct {
	RunID string `json:"run_id"`
	Scope string `json:"scope"`
}

type runsOverview struct {
	Running []string         `json:"running"`
	Service models.RunStatus `json:"service"`
}

func (h *Handler) dryRun(req runRequest) bool {
	if req.DryRun != nil {
		return *req.DryRun
	}
	return h.deps.DryRun
}

// TriggerAll handles POST /api/v1/runs: a batch run of every scheduled show.
// It answers 202 with the run id, or 409 when a batch is already running.
func (h *Handler) TriggerAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req runRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := h.deps.Runner.TriggerAll(r.Context(), h.dryRun(req))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusAccepted, runAccepted{RunID: id, Scope: coordinator.ServiceScope(coordinator.ServiceName)}, start)
}

// TriggerShow handles POST /api/v1/shows/{slug}/run.
func (h *Handler) TriggerShow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	var req runRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.deps.Store.GetBinding(r.Context(), slug); err != nil {
		respondErr(w, err)
		return
	}
	id, err := h.deps.Runner.TriggerShow(r.Context(), slug, h.dryRun(req))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondData(w, http.StatusAccepted, runAccepted{RunID: id, Scope: coordinator.ShowScope(slug)}, start)
}

// RunsOverview handles GET /api/v1/runs.
func (h *Handler) RunsOverview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	running := h.deps.Runner.Running()
	if running == nil {
		running = []string{}
	}
	respondData(w, http.StatusOK, runsOverview{
		Running: running,
		Service: h.deps.Runner.Status(r.Context(), coordinator.ServiceScope(coordinator.ServiceName)),
	}, start)
}

// ShowStatus handles GET /api/v1/shows/{slug}/status.
func (h *Handler) ShowStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug, ok := showSlug(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, h.deps.Runner.Status(r.Context(), coordinator.ShowScope(slug)), start)
}

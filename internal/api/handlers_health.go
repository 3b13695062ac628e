// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"net/http"
	"time"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

type healthResponse struct {
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	TraktAuthorized bool     `json:"trakt_authorized"`
	Running         []string `json:"running"`
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	resp := healthResponse{Status: "healthy", Version: Version, Running: h.deps.Runner.Running()}
	if resp.Running == nil {
		resp.Running = []string{}
	}
	if h.deps.Auth != nil {
		resp.TraktAuthorized = h.deps.Auth.Authenticated()
		if !resp.TraktAuthorized {
			resp.Status = "degraded"
		}
	}
	respondData(w, http.StatusOK, resp, start)
}

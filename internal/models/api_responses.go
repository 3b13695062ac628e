// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package models

import "time"

// APIResponse wraps every JSON body served by the HTTP API.
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-01-02T03:00:00Z"}
//	}
//
// On failure Status is "error" and Error is populated.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error body.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RunStatus answers "is this scope running, and how did it last end".
type RunStatus struct {
	Scope      string     `json:"scope"`
	Running    bool       `json:"running"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	Unclean    bool       `json:"unclean"`
	Message    string     `json:"message,omitempty"`
	LastReport *RunReport `json:"last_report,omitempty"`
}

// TypeCounts is the per-type episode count of one catalog show.
type TypeCounts struct {
	Slug   string              `json:"slug"`
	Counts map[EpisodeType]int `json:"counts"`
}

// CatalogShow is one catalog search hit.
type CatalogShow struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// OrphanReport lists bindings whose library title is gone from the library.
// Unbound holds cached lists whose show has no binding left.
type OrphanReport struct {
	Orphaned      []ShowBinding `json:"orphaned"`
	Lists         []RemoteList  `json:"lists"`
	Unbound       []RemoteList  `json:"unbound"`
	LibraryTitles int           `json:"library_titles"`
	Bindings      int           `json:"bindings"`
}

// OverrideRequest is the body of the mapping fix endpoint.
type OverrideRequest struct {
	Type         EpisodeType `json:"type" validate:"omitempty,oneof=filler manga anime mixed"`
	CatalogTitle string      `json:"catalog_title" validate:"required,max=500"`
	TrackedTitle string      `json:"tracked_title" validate:"required,max=500"`
	Rerun        bool        `json:"rerun"`
}

// BindingRequest is the body for creating or updating a show binding.
type BindingRequest struct {
	Slug           string   `json:"slug" validate:"required,max=200,slug"`
	LibraryTitle   string   `json:"library_title" validate:"required,max=500"`
	Scheduled      *bool    `json:"scheduled,omitempty"`
	TraktShowID    int64    `json:"trakt_show_id,omitempty" validate:"gte=0"`
	RemovePatterns []string `json:"remove_patterns,omitempty" validate:"max=20,dive,max=200"`
	RemoveDashes   bool     `json:"remove_dashes,omitempty"`
	// ClearCleanup drops the binding's cleanup rules.
	ClearCleanup bool `json:"clear_cleanup,omitempty"`
}

// CleanupRules returns the rules a binding should carry after this request.
// A request without cleanup fields keeps current.
func (r *BindingRequest) CleanupRules(current *Cleanup) *Cleanup {
	switch {
	case len(r.RemovePatterns) > 0 || r.RemoveDashes:
		return &Cleanup{RemovePatterns: r.RemovePatterns, RemoveDashes: r.RemoveDashes}
	case r.ClearCleanup:
		return nil
	default:
		return current
	}
}

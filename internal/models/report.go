// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package models

import (
	"sort"
	"time"
)

// ReconcileState is the per-(show, type) state machine position.
type ReconcileState string

const (
	StateUnmatched        ReconcileState = "unmatched"
	StateMatching         ReconcileState = "matching"
	StateSynced           ReconcileState = "synced"
	StatePartiallyMatched ReconcileState = "partially_matched"
	StateEmpty            ReconcileState = "empty"
	StateFailed           ReconcileState = "failed"
)

// SyncResult is what the list synchronizer reports for one (show, type).
type SyncResult struct {
	ListID         int64   `json:"list_id"`
	ListName       string  `json:"list_name"`
	Created        bool    `json:"created"`
	Added          []int64 `json:"added"`
	AlreadyPresent []int64 `json:"already_present"`
	Failed         []int64 `json:"failed"`
	DryRun         bool    `json:"dry_run,omitempty"`
}

// TypeReport is the outcome of one (show, type) unit.
type TypeReport struct {
	Type        EpisodeType    `json:"type"`
	State       ReconcileState `json:"state"`
	CatalogSize int            `json:"catalog_size"`
	Matched     int            `json:"matched"`
	Unresolved  []string       `json:"unresolved,omitempty"`
	Resolved    []string       `json:"resolved,omitempty"`
	Sync        *SyncResult    `json:"sync,omitempty"`
	AddedTitles []string       `json:"added_titles,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ShowReport groups the four type reports of one show.
type ShowReport struct {
	Slug       string        `json:"slug"`
	Title      string        `json:"title"`
	Types      []*TypeReport `json:"types"`
	Error      string        `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}

// Failed reports whether the show or any of its types failed.
func (s *ShowReport) Failed() bool {
	if s.Error != "" {
		return true
	}
	for _, t := range s.Types {
		if t.State == StateFailed {
			return true
		}
	}
	return false
}

// Type returns the report for t, or nil.
func (s *ShowReport) Type(t EpisodeType) *TypeReport {
	for _, tr := range s.Types {
		if tr.Type == t {
			return tr
		}
	}
	return nil
}

// RunReport aggregates every show processed by one run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Scope      string        `json:"scope"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run,omitempty"`
	Shows      []*ShowReport `json:"shows"`
	AuthError  bool          `json:"auth_error,omitempty"`
}

// Totals sums additions, failures and unresolved titles across the run.
func (r *RunReport) Totals() (added, failed, unresolved int) {
	for _, s := range r.Shows {
		for _, t := range s.Types {
			unresolved += len(t.Unresolved)
			if t.Sync != nil {
				added += len(t.Sync.Added)
				failed += len(t.Sync.Failed)
			}
		}
	}
	return added, failed, unresolved
}

// SortShows orders shows by slug so reports are stable across worker scheduling.
func (r *RunReport) SortShows() {
	sort.Slice(r.Shows, func(i, j int) bool { return r.Shows[i].Slug < r.Shows[j].Slug })
}

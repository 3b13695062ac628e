// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package models

import (
	"strings"
	"time"
)

// ShowBinding ties a catalog slug to the show's title in the local library.
type ShowBinding struct {
	Slug         string    `json:"slug" validate:"required,max=200"`
	LibraryTitle string    `json:"library_title" validate:"required,max=500"`
	Scheduled    bool      `json:"scheduled"`
	TraktShowID  int64     `json:"trakt_show_id,omitempty" validate:"gte=0"`
	CleanupRules *Cleanup  `json:"cleanup,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cleanup holds per-show catalog title fixes applied before matching.
type Cleanup struct {
	RemovePatterns []string `json:"remove_patterns,omitempty"`
	RemoveDashes   bool     `json:"remove_dashes,omitempty"`
}

// Apply returns title with the cleanup rules applied.
func (c *Cleanup) Apply(title string) string {
	if c == nil {
		return title
	}
	for _, p := range c.RemovePatterns {
		if p != "" {
			title = strings.ReplaceAll(title, p, "")
		}
	}
	if c.RemoveDashes {
		title = strings.ReplaceAll(title, "-", "")
	}
	return strings.TrimSpace(title)
}

// DisplayName falls back to a title-cased slug when no library title is bound.
func (b *ShowBinding) DisplayName() string {
	if b.LibraryTitle != "" {
		return b.LibraryTitle
	}
	words := strings.Fields(strings.ReplaceAll(b.Slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// TitleOverride is a manual correction: catalog title -> tracking-service title.
type TitleOverride struct {
	Slug         string    `json:"slug"`
	CatalogTitle string    `json:"catalog_title" validate:"required,max=500"`
	TrackedTitle string    `json:"tracked_title" validate:"required,max=500"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UnresolvedReason explains why a catalog title could not be matched.
type UnresolvedReason string

const (
	ReasonNoMatch                UnresolvedReason = "no_match"
	ReasonAmbiguous              UnresolvedReason = "ambiguous"
	ReasonOverrideTargetNotFound UnresolvedReason = "override_target_not_found"
)

// Message is the human-readable form shown on the dashboard.
func (r UnresolvedReason) Message() string {
	switch r {
	case ReasonAmbiguous:
		return "several tracked episodes scored equally"
	case ReasonOverrideTargetNotFound:
		return "override target not found"
	default:
		return "no tracked episode scored above the threshold"
	}
}

// UnresolvedMatch is a mapping error kept until a later run resolves it.
type UnresolvedMatch struct {
	Slug         string           `json:"slug"`
	Type         EpisodeType      `json:"type"`
	CatalogTitle string           `json:"catalog_title"`
	Number       int              `json:"number,omitempty"`
	Reason       UnresolvedReason `json:"reason"`
	Candidates   []string         `json:"candidates,omitempty"`
	FirstSeen    time.Time        `json:"first_seen"`
	LastSeen     time.Time        `json:"last_seen"`
}

// RemoteList is the local cache entry for one list on the tracking service.
// The remote service stays the source of truth; MemberCount is for display.
type RemoteList struct {
	RemoteID    int64       `json:"remote_id"`
	Slug        string      `json:"list_slug"`
	Name        string      `json:"name"`
	ShowSlug    string      `json:"show_slug"`
	Type        EpisodeType `json:"type"`
	MemberCount int         `json:"member_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RunRecord is the persisted "still running" flag for one scope.
type RunRecord struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

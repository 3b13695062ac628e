// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package api serves the JSON management surface over chi: show bindings,
// title overrides, unresolved mapping errors, run triggers and status,
// remote lists, the orphan scan, catalog search and the Kometa export.
// Live run events stream over /api/v1/ws.
//
// Every body is wrapped in models.APIResponse. Error kinds map to status
// codes in one place (respondErr); a busy scope answers 409.
package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/episodarr/internal/kometa"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/reconcile"
)

// Store is the persistence surface the handlers use.
type Store interface {
	GetBinding(ctx context.Context, slug string) (*models.ShowBinding, error)
	UpsertBinding(ctx context.Context, b *models.ShowBinding) error
	SetScheduled(ctx context.Context, slug string, scheduled bool) (*models.ShowBinding, error)
	RemoveBinding(ctx context.Context, slug string) error
	ListBindings(ctx context.Context) ([]models.ShowBinding, error)

	SetOverride(ctx context.Context, o *models.TitleOverride) error
	DeleteOverride(ctx context.Context, slug, catalogTitle string) error
	ListOverrides(ctx context.Context, slug string) ([]models.TitleOverride, error)

	ListUnresolved(ctx context.Context) ([]models.UnresolvedMatch, error)
	ListUnresolvedForShow(ctx context.Context, slug string) ([]models.UnresolvedMatch, error)

	ListRemoteLists(ctx context.Context) ([]models.RemoteList, error)
}

// Runner starts runs and reports their status.
type Runner interface {
	TriggerShow(ctx context.Context, slug string, dryRun bool) (string, error)
	TriggerAll(ctx context.Context, dryRun bool) (string, error)
	Status(ctx context.Context, scope string) models.RunStatus
	Running() []string
}

// Catalog is the catalog lookup surface.
type Catalog interface {
	Search(ctx context.Context, query string) ([]models.CatalogShow, error)
	TypeCounts(ctx context.Context, slug string) (*models.TypeCounts, error)
}

// ListManager browses and deletes remote lists.
type ListManager interface {
	Lists(ctx context.Context) ([]models.RemoteList, error)
	Delete(ctx context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error)
}

// Exporter writes the Kometa files.
type Exporter interface {
	Export(ctx context.Context, lists []models.RemoteList, force bool) (*kometa.Result, error)
}

// AuthChecker reports whether the tracking service credential is present.
type AuthChecker interface {
	Authenticated() bool
}

// Deps are the collaborators of Handler. Store and Runner are required;
// the rest disable their endpoints (503) when nil.
type Deps struct {
	Store    Store
	Runner   Runner
	Catalog  Catalog
	Lists    ListManager
	Library  reconcile.TitleLister
	Exporter Exporter
	Auth     AuthChecker

	// WebSocket serves /api/v1/ws.
	WebSocket http.Handler

	// DryRun is the default for triggered runs that do not say otherwise.
	DryRun bool
}

// Handler implements the API endpoints.
type Handler struct {
	deps Deps
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func unavailable(w http.ResponseWriter, what string) {
	respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", what+" is not configured", nil)
}

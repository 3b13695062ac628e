// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package models defines the shared domain types for Episodarr.

Catalog side:
  - CatalogEpisode: one row of the AnimeFillerList episode table
  - EpisodeType: Filler, MangaCanon, AnimeCanon, Mixed

Tracking side:
  - TrackedEpisode: one Trakt episode with its remote id
  - RemoteList: one Trakt list per (show, episode type)

Mapping side (persisted by internal/store):
  - ShowBinding, TitleOverride, UnresolvedMatch

Run reporting:
  - RunReport, ShowReport, TypeReport, SyncResult, ReconcileState

The error taxonomy shared by every package lives in errors.go.
*/
package models

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package reconcile runs the fetch, match, diff and sync pipeline for one show.

Each (show, type) pair moves through

	Unmatched -> Matching -> Synced | PartiallyMatched | Empty

or ends in Failed when a fetch or sync error stops it. The catalog page is
fetched once per show and split by type. Tracked episodes are fetched
lazily, once per show, and only when some type has catalog episodes. The
four types then run concurrently; a failure in one never affects the
others, and the show report is returned only after all four finish.

An expired authentication trips a run-wide flag: every unit that has not
reached the tracking service yet fails fast instead of issuing calls that
are certain to be rejected.
*/
package reconcile

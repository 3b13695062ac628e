// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// resolveShowID finds the tracking-service show id: the bound id, then the
// library's TMDB guid mapped through the service, then a text search by
// library title. A resolved id is written back to the binding.
func (r *Reconciler) resolveShowID(ctx context.Context, b *models.ShowBinding) (int64, error) {
	if b.TraktShowID != 0 {
		return b.TraktShowID, nil
	}
	title := b.DisplayName()
	log := logging.Ctx(ctx)

	if r.library != nil {
		tmdbID, err := r.library.FindShowTMDBID(ctx, title)
		switch {
		case err == nil:
			show, err := r.tracker.ResolveShowByTMDB(ctx, tmdbID)
			if err == nil && show.IDs.Trakt != 0 {
				return r.remember(ctx, b, show.IDs.Trakt, "tmdb"), nil
			}
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return 0, fmt.Errorf("resolve tmdb %d: %w", tmdbID, err)
			}
		case errors.Is(err, models.ErrNotFound):
			log.Debug().Str("library_title", title).Msg("Show not in library, falling back to search")
		default:
			log.Warn().Err(err).Msg("Library lookup failed, falling back to search")
		}
	}

	shows, err := r.tracker.SearchShow(ctx, title)
	if err != nil {
		return 0, fmt.Errorf("search show %q: %w", title, err)
	}
	if s := pickShow(shows, title); s != nil {
		return r.remember(ctx, b, s.IDs.Trakt, "search"), nil
	}
	return 0, fmt.Errorf("%w: no tracking-service show found for %q", models.ErrConfigInvalid, title)
}

// pickShow prefers an exact title match over the service's ranking.
func pickShow(shows []trakt.Show, title string) *trakt.Show {
	for i := range shows {
		if shows[i].IDs.Trakt != 0 && strings.EqualFold(shows[i].Title, title) {
			return &shows[i]
		}
	}
	for i := range shows {
		if shows[i].IDs.Trakt != 0 {
			return &shows[i]
		}
	}
	return nil
}

func (r *Reconciler) remember(ctx context.Context, b *models.ShowBinding, id int64, via string) int64 {
	logging.Ctx(ctx).Info().Int64("show_id", id).Str("via", via).Msg("Resolved tracking-service show id")
	cp := *b
	cp.TraktShowID = id
	if err := r.store.UpsertBinding(ctx, &cp); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save resolved show id")
	}
	return id
}

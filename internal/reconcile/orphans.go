// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/episodarr/internal/models"
)

// TitleLister enumerates library show titles.
type TitleLister interface {
	ListShowTitles(ctx context.Context) ([]string, error)
}

// OrphanStore is the store surface the orphan scan reads.
type OrphanStore interface {
	ListBindings(ctx context.Context) ([]models.ShowBinding, error)
	ListRemoteLists(ctx context.Context) ([]models.RemoteList, error)
}

// ScanOrphans reports bindings whose library title is no longer in the
// library, together with their remote lists, and cached lists of shows that
// are no longer bound. Nothing is deleted.
func ScanOrphans(ctx context.Context, library TitleLister, st OrphanStore) (*models.OrphanReport, error) {
	titles, err := library.ListShowTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list library titles: %w", err)
	}
	present := make(map[string]bool, len(titles))
	for _, t := range titles {
		present[strings.ToLower(strings.TrimSpace(t))] = true
	}

	bindings, err := st.ListBindings(ctx)
	if err != nil {
		return nil, err
	}
	report := &models.OrphanReport{
		Orphaned:      []models.ShowBinding{},
		Lists:         []models.RemoteList{},
		Unbound:       []models.RemoteList{},
		LibraryTitles: len(titles),
		Bindings:      len(bindings),
	}
	bound := make(map[string]bool, len(bindings))
	orphaned := make(map[string]bool)
	for _, b := range bindings {
		bound[b.Slug] = true
		if !present[strings.ToLower(strings.TrimSpace(b.DisplayName()))] {
			report.Orphaned = append(report.Orphaned, b)
			orphaned[b.Slug] = true
		}
	}

	lists, err := st.ListRemoteLists(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range lists {
		switch {
		case !bound[l.ShowSlug]:
			report.Unbound = append(report.Unbound, l)
		case orphaned[l.ShowSlug]:
			report.Lists = append(report.Lists, l)
		}
	}
	return report, nil
}

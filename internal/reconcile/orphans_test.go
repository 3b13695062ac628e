// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package reconcile

import (
	"context"
	"testing"

	"github.com/tomtom215/episodarr/internal/models"
)

func TestScenarioDOrphanScanReportsWithoutDeleting(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.rec.ReconcileShow(ctx, testSlug, RunOptions{})
	_ = h.store.UpsertBinding(ctx, &models.ShowBinding{Slug: "bleach", LibraryTitle: "Bleach"})

	// "Naruto" has been removed from the library.
	lib := &fakeLibrary{titles: []string{"Bleach", "One Piece"}}
	report, err := ScanOrphans(ctx, lib, h.store)
	if err != nil {
		t.Fatalf("ScanOrphans() error = %v", err)
	}
	if len(report.Orphaned) != 1 || report.Orphaned[0].Slug != testSlug {
		t.Fatalf("Orphaned = %+v, want naruto only", report.Orphaned)
	}
	if len(report.Lists) != 3 {
		t.Errorf("orphaned lists = %d, want 3", len(report.Lists))
	}
	if report.Bindings != 2 || report.LibraryTitles != 2 {
		t.Errorf("counts = %d bindings / %d titles", report.Bindings, report.LibraryTitles)
	}

	// Nothing was removed locally or remotely.
	if _, err := h.store.GetBinding(ctx, testSlug); err != nil {
		t.Errorf("binding removed: %v", err)
	}
	if lists, _ := h.store.ListRemoteLists(ctx); len(lists) != 3 {
		t.Errorf("cached lists = %d, want 3", len(lists))
	}
	if h.remote.listCount() != 3 {
		t.Errorf("remote lists = %d, want 3", h.remote.listCount())
	}
}

func TestOrphanScanCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	report, err := ScanOrphans(context.Background(), &fakeLibrary{titles: []string{"NARUTO "}}, h.store)
	if err != nil {
		t.Fatalf("ScanOrphans() error = %v", err)
	}
	if len(report.Orphaned) != 0 {
		t.Errorf("Orphaned = %+v, want none", report.Orphaned)
	}
}

func TestOrphanScanReportsListsOfRemovedBindings(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.rec.ReconcileShow(ctx, testSlug, RunOptions{})
	if err := h.store.RemoveBinding(ctx, testSlug); err != nil {
		t.Fatalf("RemoveBinding() error = %v", err)
	}

	report, err := ScanOrphans(ctx, &fakeLibrary{titles: []string{"Naruto"}}, h.store)
	if err != nil {
		t.Fatalf("ScanOrphans() error = %v", err)
	}
	if len(report.Orphaned) != 0 || len(report.Lists) != 0 {
		t.Errorf("orphaned = %+v, lists = %+v, want none", report.Orphaned, report.Lists)
	}
	if len(report.Unbound) != 3 {
		t.Fatalf("unbound lists = %d, want 3", len(report.Unbound))
	}
	for _, l := range report.Unbound {
		if l.ShowSlug != testSlug {
			t.Errorf("unbound list %s belongs to %s", l.Name, l.ShowSlug)
		}
	}
	if lists, _ := h.store.ListRemoteLists(ctx); len(lists) != 3 {
		t.Errorf("cached lists = %d, want 3", len(lists))
	}
}

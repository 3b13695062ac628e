// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/episodarr/internal/listsync"
	"github.com/tomtom215/episodarr/internal/matcher"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/store"
	"github.com/tomtom215/episodarr/internal/trakt"
)

type fakeCatalog struct {
	mu    sync.Mutex
	shows map[string][]models.CatalogEpisode
	err   error
}

func (f *fakeCatalog) ListEpisodes(_ context.Context, slug string) ([]models.CatalogEpisode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	eps, ok := f.shows[slug]
	if !ok {
		return nil, fmt.Errorf("catalog %s: %w", slug, models.ErrNotFound)
	}
	return append([]models.CatalogEpisode(nil), eps...), nil
}

func (f *fakeCatalog) retitle(slug string, number int, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.shows[slug] {
		if f.shows[slug][i].Number == number {
			f.shows[slug][i].Title = title
		}
	}
}

type fakeTracker struct {
	episodes map[int64][]models.TrackedEpisode
	byTMDB   map[int64]int64
	search   map[string][]trakt.Show
	fetches  atomic.Int32
	err      error
}

func (f *fakeTracker) GetShowEpisodes(_ context.Context, showID int64) ([]models.TrackedEpisode, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	eps, ok := f.episodes[showID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return eps, nil
}

func (f *fakeTracker) ResolveShowByTMDB(_ context.Context, tmdbID int64) (*trakt.Show, error) {
	id, ok := f.byTMDB[tmdbID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &trakt.Show{IDs: trakt.IDs{Trakt: id, TMDB: tmdbID}}, nil
}

func (f *fakeTracker) SearchShow(_ context.Context, query string) ([]trakt.Show, error) {
	return f.search[query], nil
}

type fakeLibrary struct {
	tmdb   map[string]int64
	titles []string
}

func (f *fakeLibrary) FindShowTMDBID(_ context.Context, title string) (int64, error) {
	id, ok := f.tmdb[title]
	if !ok {
		return 0, models.ErrNotFound
	}
	return id, nil
}

func (f *fakeLibrary) ListShowTitles(context.Context) ([]string, error) {
	return f.titles, nil
}

// fakeRemote is an in-memory list service keyed by list id.
type fakeRemote struct {
	mu        sync.Mutex
	nextID    int64
	lists     map[int64]trakt.List
	members   map[int64]map[int64]struct{}
	addCalls  int
	createErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 500, lists: map[int64]trakt.List{}, members: map[int64]map[int64]struct{}{}}
}

func (f *fakeRemote) ListMyLists(context.Context) ([]trakt.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trakt.List
	for _, l := range f.lists {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRemote) CreateList(_ context.Context, name, _ string) (*trakt.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	l := trakt.List{Name: name, IDs: trakt.IDs{Trakt: f.nextID, Slug: name}}
	f.lists[f.nextID] = l
	f.members[f.nextID] = map[int64]struct{}{}
	return &l, nil
}

func (f *fakeRemote) GetListEpisodeIDs(_ context.Context, listID int64) (map[int64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[listID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := make(map[int64]struct{}, len(m))
	for id := range m {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeRemote) AddItemsToList(_ context.Context, listID int64, ids []int64) (*trakt.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	res := &trakt.AddResult{}
	for _, id := range ids {
		if _, ok := f.members[listID][id]; ok {
			res.Existing++
			continue
		}
		f.members[listID][id] = struct{}{}
		res.Added++
	}
	return res, nil
}

// listByName returns the members of the named list, or nil when absent.
func (f *fakeRemote) listByName(name string) map[int64]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, l := range f.lists {
		if l.Name == name {
			return f.members[id]
		}
	}
	return nil
}

func (f *fakeRemote) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists)
}

const (
	testShowID = 1
	testSlug   = "naruto"
)

func trackedTitle(n int) string { return fmt.Sprintf("The Adventure Number %d", n) }

// scenarioA builds 162 manga, 163 filler, 41 mixed and 0 anime-canon
// episodes, each with a matching tracked episode (remote id 1000+n).
func scenarioA() ([]models.CatalogEpisode, []models.TrackedEpisode) {
	var cat []models.CatalogEpisode
	var tracked []models.TrackedEpisode
	for n := 1; n <= 366; n++ {
		t := models.EpisodeTypeMangaCanon
		switch {
		case n > 325:
			t = models.EpisodeTypeMixed
		case n > 162:
			t = models.EpisodeTypeFiller
		}
		cat = append(cat, models.CatalogEpisode{Number: n, Title: trackedTitle(n), Type: t})
		tracked = append(tracked, models.TrackedEpisode{Season: 1, Number: n, Title: trackedTitle(n), RemoteID: int64(1000 + n)})
	}
	return cat, tracked
}

type harness struct {
	store   *store.Store
	catalog *fakeCatalog
	tracker *fakeTracker
	remote  *fakeRemote
	rec     *Reconciler
}

func newHarness(t *testing.T, library Library) *harness {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cat, tracked := scenarioA()
	h := &harness{
		store:   st,
		catalog: &fakeCatalog{shows: map[string][]models.CatalogEpisode{testSlug: cat}},
		tracker: &fakeTracker{episodes: map[int64][]models.TrackedEpisode{testShowID: tracked}},
		remote:  newFakeRemote(),
	}
	syncer := listsync.New(h.remote, st, listsync.Config{})
	h.rec = New(h.catalog, h.tracker, library, st, syncer, matcher.DefaultOptions())

	if err := st.UpsertBinding(context.Background(), &models.ShowBinding{
		Slug: testSlug, LibraryTitle: "Naruto", Scheduled: true, TraktShowID: testShowID,
	}); err != nil {
		t.Fatalf("UpsertBinding() error = %v", err)
	}
	return h
}

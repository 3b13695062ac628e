// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package listsync

import (
	"context"
	"sync"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// fakeRemote is an in-memory tracking service.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int64
	lists   map[int64]*trakt.List
	members map[int64]map[int64]struct{}

	// failAdd makes the n-th AddItemsToList call (1-based) fail.
	failAdd  map[int]error
	notFound map[int64]bool

	creates  int
	addCalls int
	batches  [][]int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:   100,
		lists:    map[int64]*trakt.List{},
		members:  map[int64]map[int64]struct{}{},
		failAdd:  map[int]error{},
		notFound: map[int64]bool{},
	}
}

func (f *fakeRemote) ListMyLists(context.Context) ([]trakt.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]trakt.List, 0, len(f.lists))
	for _, l := range f.lists {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeRemote) CreateList(_ context.Context, name, _ string) (*trakt.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.nextID++
	l := &trakt.List{Name: name, Privacy: "private", IDs: trakt.IDs{Trakt: f.nextID, Slug: name}}
	f.lists[f.nextID] = l
	f.members[f.nextID] = map[int64]struct{}{}
	return l, nil
}

func (f *fakeRemote) GetListEpisodeIDs(_ context.Context, listID int64) (map[int64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[listID]
	if !ok {
		return nil, &models.HTTPStatusError{Service: "fake", StatusCode: 404}
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
	f.batches = append(f.batches, append([]int64(nil), ids...))
	if err := f.failAdd[f.addCalls]; err != nil {
		return nil, err
	}
	res := &trakt.AddResult{}
	for _, id := range ids {
		if f.notFound[id] {
			res.NotFound = append(res.NotFound, id)
			continue
		}
		if _, ok := f.members[listID][id]; ok {
			res.Existing++
			continue
		}
		f.members[listID][id] = struct{}{}
		res.Added++
	}
	return res, nil
}

func (f *fakeRemote) DeleteList(_ context.Context, listID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[listID]; !ok {
		return &models.HTTPStatusError{Service: "fake", StatusCode: 404}
	}
	delete(f.lists, listID)
	delete(f.members, listID)
	return nil
}

func (f *fakeRemote) memberCount(listID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[listID])
}

// memCache is an in-memory list cache.
type memCache struct {
	mu    sync.Mutex
	lists map[string]models.RemoteList
}

func newMemCache() *memCache { return &memCache{lists: map[string]models.RemoteList{}} }

func (c *memCache) GetRemoteList(_ context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lists[models.ListName(slug, t)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &l, nil
}

func (c *memCache) PutRemoteList(_ context.Context, l *models.RemoteList) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[models.ListName(l.ShowSlug, l.Type)] = *l
	return nil
}

func (c *memCache) DeleteRemoteList(_ context.Context, slug string, t models.EpisodeType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.ListName(slug, t)
	if _, ok := c.lists[key]; !ok {
		return models.ErrNotFound
	}
	delete(c.lists, key)
	return nil
}

func seq(from, n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = from + int64(i)
	}
	return out
}

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package listsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/store"
	"github.com/tomtom215/episodarr/internal/trakt"
)

func TestSyncCreatesListAndIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	cache := newMemCache()
	s := New(remote, cache, Config{})
	ctx := context.Background()
	target := seq(1, 163)

	res, err := s.Sync(ctx, "naruto", models.EpisodeTypeMangaCanon, target, false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.Created || res.ListName != "naruto_manga" {
		t.Errorf("Created = %v ListName = %q", res.Created, res.ListName)
	}
	if len(res.Added) != 163 {
		t.Errorf("Added = %d, want 163", len(res.Added))
	}
	if len(remote.batches) != 2 || len(remote.batches[0]) != 100 || len(remote.batches[1]) != 63 {
		t.Errorf("batches = %d (first %d), want 100 + 63", len(remote.batches), len(remote.batches[0]))
	}

	again, err := s.Sync(ctx, "naruto", models.EpisodeTypeMangaCanon, target, false)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if len(again.Added) != 0 || len(again.AlreadyPresent) != 163 || again.Created {
		t.Errorf("second run Added = %d AlreadyPresent = %d Created = %v", len(again.Added), len(again.AlreadyPresent), again.Created)
	}
	if remote.creates != 1 || remote.addCalls != 2 {
		t.Errorf("creates = %d addCalls = %d, want 1 and 2", remote.creates, remote.addCalls)
	}

	cached, _ := cache.GetRemoteList(ctx, "naruto", models.EpisodeTypeMangaCanon)
	if cached.MemberCount != 163 {
		t.Errorf("cached MemberCount = %d, want 163", cached.MemberCount)
	}
}

func TestSyncNeverRemoves(t *testing.T) {
	remote := newFakeRemote()
	s := New(remote, newMemCache(), Config{})
	ctx := context.Background()

	res, err := s.Sync(ctx, "bleach", models.EpisodeTypeFiller, []int64{1, 2, 3}, false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if _, err := s.Sync(ctx, "bleach", models.EpisodeTypeFiller, []int64{1}, false); err != nil {
		t.Fatalf("Sync() smaller target error = %v", err)
	}
	if got := remote.memberCount(res.ListID); got != 3 {
		t.Errorf("members = %d, want 3 (no removal)", got)
	}
}

func TestSyncAdoptsExistingListAfterCacheLoss(t *testing.T) {
	remote := newFakeRemote()
	existing, _ := remote.CreateList(context.Background(), "naruto_filler", "")
	remote.creates = 0
	_, _ = remote.AddItemsToList(context.Background(), existing.IDs.Trakt, []int64{1, 2})
	remote.addCalls, remote.batches = 0, nil

	s := New(remote, newMemCache(), Config{})
	res, err := s.Sync(context.Background(), "naruto", models.EpisodeTypeFiller, []int64{1, 2, 3}, false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Created || remote.creates != 0 {
		t.Errorf("list was created again, want adoption")
	}
	if res.ListID != existing.IDs.Trakt {
		t.Errorf("ListID = %d, want %d", res.ListID, existing.IDs.Trakt)
	}
	if len(res.Added) != 1 || res.Added[0] != 3 || len(res.AlreadyPresent) != 2 {
		t.Errorf("Added = %v AlreadyPresent = %v", res.Added, res.AlreadyPresent)
	}
}

func TestSyncPartialBatchFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.failAdd[2] = fmt.Errorf("gave up: %w", models.ErrTransientNetwork)
	s := New(remote, newMemCache(), Config{BatchSize: 10})

	res, err := s.Sync(context.Background(), "one-piece", models.EpisodeTypeFiller, seq(1, 30), false)
	if !errors.Is(err, models.ErrSyncPartialFailure) {
		t.Fatalf("error = %v, want ErrSyncPartialFailure", err)
	}
	if len(res.Added) != 20 || len(res.Failed) != 10 {
		t.Errorf("Added = %d Failed = %d, want 20 and 10", len(res.Added), len(res.Failed))
	}
	if res.Failed[0] != 11 {
		t.Errorf("Failed[0] = %d, want the second batch", res.Failed[0])
	}
	if remote.addCalls != 3 {
		t.Errorf("addCalls = %d, want 3 (later batches proceed)", remote.addCalls)
	}

	// The next run picks up only what is missing.
	res, err = s.Sync(context.Background(), "one-piece", models.EpisodeTypeFiller, seq(1, 30), false)
	if err != nil {
		t.Fatalf("rerun error = %v", err)
	}
	if len(res.Added) != 10 {
		t.Errorf("rerun Added = %d, want 10", len(res.Added))
	}
}

func TestSyncNotFoundItemsCountAsFailed(t *testing.T) {
	remote := newFakeRemote()
	remote.notFound[2] = true
	s := New(remote, newMemCache(), Config{})

	res, err := s.Sync(context.Background(), "naruto", models.EpisodeTypeMixed, []int64{1, 2, 3}, false)
	if !errors.Is(err, models.ErrSyncPartialFailure) {
		t.Fatalf("error = %v, want ErrSyncPartialFailure", err)
	}
	if len(res.Failed) != 1 || res.Failed[0] != 2 || len(res.Added) != 2 {
		t.Errorf("Added = %v Failed = %v", res.Added, res.Failed)
	}
}

func TestSyncAuthExpiredStopsRemainingBatches(t *testing.T) {
	remote := newFakeRemote()
	remote.failAdd[1] = models.ErrAuthExpired
	s := New(remote, newMemCache(), Config{BatchSize: 10})

	res, err := s.Sync(context.Background(), "naruto", models.EpisodeTypeFiller, seq(1, 25), false)
	if !errors.Is(err, models.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if remote.addCalls != 1 || len(res.Failed) != 25 {
		t.Errorf("addCalls = %d Failed = %d, want 1 and 25", remote.addCalls, len(res.Failed))
	}
}

func TestSyncDryRunMutatesNothing(t *testing.T) {
	remote := newFakeRemote()
	cache := newMemCache()
	s := New(remote, cache, Config{})

	res, err := s.Sync(context.Background(), "naruto", models.EpisodeTypeFiller, []int64{1, 2}, true)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.DryRun || !res.Created || len(res.Added) != 2 {
		t.Errorf("dry run result = %+v", res)
	}
	if remote.creates != 0 || remote.addCalls != 0 || len(cache.lists) != 0 {
		t.Errorf("dry run mutated state: creates=%d adds=%d cached=%d", remote.creates, remote.addCalls, len(cache.lists))
	}
}

func TestSyncRecoversFromRemotelyDeletedList(t *testing.T) {
	remote := newFakeRemote()
	cache := newMemCache()
	_ = cache.PutRemoteList(context.Background(), &models.RemoteList{RemoteID: 9999, Name: "naruto_filler", ShowSlug: "naruto", Type: models.EpisodeTypeFiller})

	s := New(remote, cache, Config{})
	res, err := s.Sync(context.Background(), "naruto", models.EpisodeTypeFiller, []int64{1}, false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !res.Created || res.ListID == 9999 {
		t.Errorf("result = %+v, want a fresh list", res)
	}
}

func TestSyncWithBadgerCache(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	remote := newFakeRemote()
	s := New(remote, st, Config{})
	ctx := context.Background()

	if _, err := s.Sync(ctx, "naruto", models.EpisodeTypeAnimeCanon, []int64{5, 6}, false); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	l, err := st.GetRemoteList(ctx, "naruto", models.EpisodeTypeAnimeCanon)
	if err != nil {
		t.Fatalf("GetRemoteList() error = %v", err)
	}
	if l.MemberCount != 2 || l.Name != "naruto_anime" {
		t.Errorf("cached list = %+v", l)
	}
}

var _ Remote = (*trakt.Client)(nil)

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package listsync keeps one remote list per (show, type) in step with a
// target set of episode ids. It only ever adds: items already on a list stay,
// items the target no longer names are left alone.
package listsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// DefaultBatchSize is the largest add-items request sent.
const DefaultBatchSize = 100

// Remote is the subset of the tracking-service client used here.
type Remote interface {
	ListMyLists(ctx context.Context) ([]trakt.List, error)
	CreateList(ctx context.Context, name, description string) (*trakt.List, error)
	GetListEpisodeIDs(ctx context.Context, listID int64) (map[int64]struct{}, error)
	AddItemsToList(ctx context.Context, listID int64, ids []int64) (*trakt.AddResult, error)
}

// Cache remembers which remote list belongs to which (show, type).
type Cache interface {
	GetRemoteList(ctx context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error)
	PutRemoteList(ctx context.Context, l *models.RemoteList) error
	DeleteRemoteList(ctx context.Context, slug string, t models.EpisodeType) error
}

// Config tunes batching.
type Config struct {
	BatchSize int
	// BatchTimeout bounds one add-items call, retries included. It applies to
	// a context detached from run cancellation.
	BatchTimeout time.Duration
	DryRun       bool
}

// Synchronizer applies target sets to remote lists.
type Synchronizer struct {
	remote Remote
	cache  Cache
	cfg    Config
}

// New creates a Synchronizer.
func New(remote Remote, cache Cache, cfg Config) *Synchronizer {
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 2 * time.Minute
	}
	return &Synchronizer{remote: remote, cache: cache, cfg: cfg}
}

// Sync makes every id of target a member of the (slug, t) list, creating
// the list when needed. Batches that still fail after retries are reported
// in SyncResult.Failed and the returned error wraps
// models.ErrSyncPartialFailure; later batches still run. A dry run reports
// the additions without mutating anything.
func (s *Synchronizer) Sync(ctx context.Context, slug string, t models.EpisodeType, target []int64, dryRun bool) (*models.SyncResult, error) {
	return s.sync(ctx, slug, t, target, dryRun || s.cfg.DryRun, false)
}

func (s *Synchronizer) sync(ctx context.Context, slug string, t models.EpisodeType, target []int64, dryRun, retried bool) (*models.SyncResult, error) {
	name := models.ListName(slug, t)
	log := logging.Ctx(ctx).With().Str("list", name).Logger()

	list, created, err := s.resolveList(ctx, slug, t, dryRun)
	if err != nil {
		return nil, err
	}
	res := &models.SyncResult{ListName: name, Created: created, DryRun: dryRun}

	current := map[int64]struct{}{}
	if list != nil {
		res.ListID = list.RemoteID
	}
	if list != nil && !created {
		current, err = s.remote.GetListEpisodeIDs(ctx, list.RemoteID)
		if errors.Is(err, models.ErrNotFound) && !retried {
			// Cached list was deleted remotely; forget it and start over once.
			log.Warn().Int64("list_id", list.RemoteID).Msg("Cached list is gone, resolving again")
			if derr := s.cache.DeleteRemoteList(ctx, slug, t); derr != nil && !errors.Is(derr, models.ErrNotFound) {
				return nil, derr
			}
			return s.sync(ctx, slug, t, target, dryRun, true)
		}
		if err != nil {
			return nil, fmt.Errorf("read list %s: %w", name, err)
		}
	}

	additions := diff(target, current, res)
	if len(additions) == 0 || dryRun {
		if dryRun {
			res.Added = additions
		}
		log.Debug().Int("already_present", len(res.AlreadyPresent)).Int("to_add", len(additions)).
			Bool("dry_run", dryRun).Msg("List up to date")
		return res, s.updateCount(ctx, list, len(current)+len(res.Added), dryRun)
	}

	var authErr error
	for start := 0; start < len(additions); start += s.cfg.BatchSize {
		batch := additions[start:min(start+s.cfg.BatchSize, len(additions))]

		if authErr != nil {
			res.Failed = append(res.Failed, batch...)
			continue
		}
		if err := ctx.Err(); err != nil {
			// Cancelled between batches: untried ids are reported, not sent.
			res.Failed = append(res.Failed, batch...)
			continue
		}

		added, failed, err := s.addBatch(ctx, list.RemoteID, batch)
		res.Added = append(res.Added, added...)
		res.Failed = append(res.Failed, failed...)
		if err != nil {
			log.Warn().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("Batch failed")
			if errors.Is(err, models.ErrAuthExpired) {
				authErr = err
			}
		}
	}

	log.Info().Int("added", len(res.Added)).Int("failed", len(res.Failed)).
		Int("already_present", len(res.AlreadyPresent)).Msg("List synchronized")

	if err := s.updateCount(ctx, list, len(current)+len(res.Added), false); err != nil {
		log.Warn().Err(err).Msg("Failed to update list cache")
	}

	switch {
	case authErr != nil:
		return res, authErr
	case len(res.Failed) > 0:
		return res, fmt.Errorf("%w: %d of %d additions failed on %s",
			models.ErrSyncPartialFailure, len(res.Failed), len(additions), name)
	}
	return res, nil
}

// addBatch sends one batch under a context detached from run cancellation.
func (s *Synchronizer) addBatch(ctx context.Context, listID int64, batch []int64) (added, failed []int64, err error) {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BatchTimeout)
	defer cancel()

	ar, err := s.remote.AddItemsToList(bctx, listID, batch)
	if err != nil {
		return nil, batch, err
	}

	notFound := make(map[int64]struct{}, len(ar.NotFound))
	for _, id := range ar.NotFound {
		notFound[id] = struct{}{}
	}
	for _, id := range batch {
		if _, ok := notFound[id]; ok {
			failed = append(failed, id)
		} else {
			added = append(added, id)
		}
	}
	if ar.Added+ar.Existing != len(added) {
		logging.Ctx(ctx).Debug().Int("reported_added", ar.Added).Int("reported_existing", ar.Existing).
			Int("sent", len(batch)).Msg("Add counts differ from batch size")
	}
	return added, failed, nil
}

// diff returns target ids absent from current, in target order without
// duplicates, and records the present ones on res.
func diff(target []int64, current map[int64]struct{}, res *models.SyncResult) []int64 {
	seen := make(map[int64]struct{}, len(target))
	var out []int64
	for _, id := range target {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; ok {
			res.AlreadyPresent = append(res.AlreadyPresent, id)
			continue
		}
		out = append(out, id)
	}
	return out
}

// resolveList finds the list through the cache, then by name on the remote
// (adoption after cache loss), then creates it. In a dry run a missing list
// is reported as created but nothing is written; list is nil then.
func (s *Synchronizer) resolveList(ctx context.Context, slug string, t models.EpisodeType, dryRun bool) (*models.RemoteList, bool, error) {
	cached, err := s.cache.GetRemoteList(ctx, slug, t)
	if err == nil {
		return cached, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("list cache: %w", err)
	}

	name := models.ListName(slug, t)
	lists, err := s.remote.ListMyLists(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list remote lists: %w", err)
	}
	for _, l := range lists {
		if l.Name != name {
			continue
		}
		rl := &models.RemoteList{
			RemoteID: l.IDs.Trakt, Slug: l.IDs.Slug, Name: l.Name,
			ShowSlug: slug, Type: t, MemberCount: l.ItemCount,
		}
		logging.Ctx(ctx).Info().Str("list", name).Int64("list_id", rl.RemoteID).Msg("Adopted existing remote list")
		if !dryRun {
			if err := s.cache.PutRemoteList(ctx, rl); err != nil {
				return nil, false, err
			}
		}
		return rl, false, nil
	}

	if dryRun {
		return nil, true, nil
	}

	desc := fmt.Sprintf("%s episodes of %s, maintained by Episodarr", t.CatalogLabel(), slug)
	l, err := s.remote.CreateList(ctx, name, desc)
	if err != nil {
		return nil, false, fmt.Errorf("create list %s: %w", name, err)
	}
	rl := &models.RemoteList{RemoteID: l.IDs.Trakt, Slug: l.IDs.Slug, Name: l.Name, ShowSlug: slug, Type: t}
	if err := s.cache.PutRemoteList(ctx, rl); err != nil {
		return nil, false, err
	}
	logging.Ctx(ctx).Info().Str("list", name).Int64("list_id", rl.RemoteID).Msg("Created remote list")
	return rl, true, nil
}

func (s *Synchronizer) updateCount(ctx context.Context, list *models.RemoteList, count int, dryRun bool) error {
	if list == nil || dryRun || list.MemberCount == count {
		return nil
	}
	list.MemberCount = count
	return s.cache.PutRemoteList(ctx, list)
}

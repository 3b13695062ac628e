// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/matcher"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// Catalog supplies classified episodes.
type Catalog interface {
	ListEpisodes(ctx context.Context, slug string) ([]models.CatalogEpisode, error)
}

// Tracker is the tracking-service surface the reconciler reads.
type Tracker interface {
	GetShowEpisodes(ctx context.Context, showID int64) ([]models.TrackedEpisode, error)
	ResolveShowByTMDB(ctx context.Context, tmdbID int64) (*trakt.Show, error)
	SearchShow(ctx context.Context, query string) ([]trakt.Show, error)
}

// Library looks up a show's TMDB id in the media library. Optional.
type Library interface {
	FindShowTMDBID(ctx context.Context, title string) (int64, error)
}

// Store is the mapping store surface used here.
type Store interface {
	GetBinding(ctx context.Context, slug string) (*models.ShowBinding, error)
	UpsertBinding(ctx context.Context, b *models.ShowBinding) error
	OverrideMap(ctx context.Context, slug string) (map[string]string, error)
	RecordUnresolved(ctx context.Context, u *models.UnresolvedMatch) error
	ResolveUnresolved(ctx context.Context, slug string, t models.EpisodeType, title string) error
	ListUnresolvedFor(ctx context.Context, slug string, t models.EpisodeType) ([]models.UnresolvedMatch, error)
	CountUnresolved(ctx context.Context) (int, error)
}

// Syncer applies a target set to the (slug, type) remote list.
type Syncer interface {
	Sync(ctx context.Context, slug string, t models.EpisodeType, target []int64, dryRun bool) (*models.SyncResult, error)
}

// RunOptions carries per-run settings shared by every show of a run.
type RunOptions struct {
	DryRun bool
	// Abort is tripped on the first authentication failure of the run.
	// A nil Abort gives the show its own flag.
	Abort *atomic.Bool
}

// Reconciler runs the per-show pipeline.
type Reconciler struct {
	catalog Catalog
	tracker Tracker
	library Library
	store   Store
	syncer  Syncer
	opts    matcher.Options

	units   *keyedMutex
	fetches singleflight.Group
}

// New creates a Reconciler. library may be nil.
func New(catalog Catalog, tracker Tracker, library Library, store Store, syncer Syncer, opts matcher.Options) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		tracker: tracker,
		library: library,
		store:   store,
		syncer:  syncer,
		opts:    opts,
		units:   newKeyedMutex(),
	}
}

// showContext is the lazily loaded tracking data shared by the four types.
type showContext struct {
	binding   *models.ShowBinding
	overrides map[string]string
	load      func() (*trackedShow, error)
}

type trackedShow struct {
	matcher *matcher.Matcher
	byID    map[int64]models.TrackedEpisode
}

// ReconcileShow runs every type of one bound show and returns its report.
// Errors are reported, never returned.
func (r *Reconciler) ReconcileShow(ctx context.Context, slug string, ro RunOptions) *models.ShowReport {
	start := time.Now()
	if ro.Abort == nil {
		ro.Abort = &atomic.Bool{}
	}
	ctx = logging.ContextWithShow(ctx, slug)
	log := logging.Ctx(ctx)

	report := &models.ShowReport{Slug: slug, Title: slug}
	defer func() { report.DurationMS = time.Since(start).Milliseconds() }()

	binding, err := r.store.GetBinding(ctx, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			err = fmt.Errorf("%w: show %q is not bound", models.ErrConfigInvalid, slug)
		}
		return failAll(report, err)
	}
	report.Title = binding.DisplayName()

	episodes, err := r.catalog.ListEpisodes(ctx, slug)
	if err != nil {
		log.Error().Err(err).Msg("Catalog fetch failed")
		return failAll(report, fmt.Errorf("catalog fetch: %w", err))
	}

	overrides, err := r.store.OverrideMap(ctx, slug)
	if err != nil {
		return failAll(report, fmt.Errorf("load overrides: %w", err))
	}

	byType := make(map[models.EpisodeType][]models.CatalogEpisode, len(models.AllEpisodeTypes))
	for _, ep := range episodes {
		ep.Title = binding.CleanupRules.Apply(ep.Title)
		byType[ep.Type] = append(byType[ep.Type], ep)
	}

	sc := &showContext{binding: binding, overrides: overrides}
	sc.load = sync.OnceValues(func() (*trackedShow, error) {
		return r.loadTracked(ctx, binding)
	})

	report.Types = make([]*models.TypeReport, len(models.AllEpisodeTypes))
	var g errgroup.Group
	for i, t := range models.AllEpisodeTypes {
		g.Go(func() error {
			report.Types[i] = r.reconcileType(ctx, sc, t, byType[t], ro)
			return nil
		})
	}
	_ = g.Wait()

	if n, err := r.store.CountUnresolved(ctx); err == nil {
		metrics.UnresolvedMatches.Set(float64(n))
	}

	log.Info().Dur("duration", time.Since(start)).Bool("failed", report.Failed()).Msg("Show reconciled")
	return report
}

func failAll(report *models.ShowReport, err error) *models.ShowReport {
	report.Error = err.Error()
	report.Types = make([]*models.TypeReport, 0, len(models.AllEpisodeTypes))
	for _, t := range models.AllEpisodeTypes {
		tr := &models.TypeReport{Type: t, State: models.StateFailed, Error: err.Error()}
		metrics.RecordTypeOutcome(tr)
		report.Types = append(report.Types, tr)
	}
	return report
}

// loadTracked resolves the show id and fetches its episodes. Concurrent
// runs for the same show id share one fetch.
func (r *Reconciler) loadTracked(ctx context.Context, b *models.ShowBinding) (*trackedShow, error) {
	showID, err := r.resolveShowID(ctx, b)
	if err != nil {
		return nil, err
	}
	v, err, _ := r.fetches.Do(strconv.FormatInt(showID, 10), func() (any, error) {
		return r.tracker.GetShowEpisodes(ctx, showID)
	})
	if err != nil {
		return nil, fmt.Errorf("tracked episodes: %w", err)
	}
	tracked := v.([]models.TrackedEpisode)
	byID := make(map[int64]models.TrackedEpisode, len(tracked))
	for _, e := range tracked {
		byID[e.RemoteID] = e
	}
	return &trackedShow{matcher: matcher.New(tracked, r.opts), byID: byID}, nil
}

// reconcileType runs one (show, type) unit.
func (r *Reconciler) reconcileType(ctx context.Context, sc *showContext, t models.EpisodeType, catalog []models.CatalogEpisode, ro RunOptions) *models.TypeReport {
	slug := sc.binding.Slug
	tr := &models.TypeReport{Type: t, State: models.StateUnmatched, CatalogSize: len(catalog)}
	defer metrics.RecordTypeOutcome(tr)
	log := logging.Ctx(ctx).With().Str("type", string(t)).Logger()

	fail := func(err error) *models.TypeReport {
		tr.State = models.StateFailed
		tr.Error = err.Error()
		if errors.Is(err, models.ErrAuthExpired) {
			ro.Abort.Store(true)
		}
		log.Warn().Err(err).Msg("Type failed")
		return tr
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("not started: %w", err))
	}

	unlock := r.units.Lock(slug + "/" + string(t))
	defer unlock()

	if len(catalog) == 0 {
		tr.State = models.StateEmpty
		resolved, err := r.clearStale(ctx, slug, t, nil)
		tr.Resolved = resolved
		if err != nil {
			log.Warn().Err(err).Msg("Failed to clear stale unresolved records")
		}
		return tr
	}

	if ro.Abort.Load() {
		return fail(fmt.Errorf("%w: skipped after earlier authentication failure", models.ErrAuthExpired))
	}

	tr.State = models.StateMatching
	ts, err := sc.load()
	if err != nil {
		return fail(err)
	}

	var ids []int64
	seen := make(map[int64]bool, len(catalog))
	reproduced := make(map[string]bool)
	for _, ep := range catalog {
		res := ts.matcher.Match(ep, sc.overrides)
		if !res.Resolved() {
			reproduced[ep.Title] = true
			tr.Unresolved = append(tr.Unresolved, ep.Title)
			u := &models.UnresolvedMatch{
				Slug: slug, Type: t, CatalogTitle: ep.Title, Number: ep.Number,
				Reason: res.Reason, Candidates: res.Candidates,
			}
			if err := r.store.RecordUnresolved(ctx, u); err != nil {
				return fail(fmt.Errorf("record unresolved: %w", err))
			}
			continue
		}
		tr.Matched++
		if id := res.Episode.RemoteID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	resolved, err := r.clearStale(ctx, slug, t, reproduced)
	tr.Resolved = resolved
	if err != nil {
		return fail(fmt.Errorf("clear resolved records: %w", err))
	}

	state := models.StateSynced
	if len(tr.Unresolved) > 0 {
		state = models.StatePartiallyMatched
	}
	if len(ids) == 0 {
		tr.State = state
		return tr
	}

	if ro.Abort.Load() {
		return fail(fmt.Errorf("%w: skipped after earlier authentication failure", models.ErrAuthExpired))
	}
	res, err := r.syncer.Sync(ctx, slug, t, ids, ro.DryRun)
	tr.Sync = res
	switch {
	case err == nil:
	case res != nil && errors.Is(err, models.ErrSyncPartialFailure):
		tr.Error = err.Error()
	default:
		return fail(err)
	}
	// Ids the service refused are matched but not present remotely.
	if res != nil && len(res.Failed) > 0 {
		state = models.StatePartiallyMatched
	}

	if res != nil {
		for _, id := range res.Added {
			if e, ok := ts.byID[id]; ok {
				tr.AddedTitles = append(tr.AddedTitles, e.Label())
			}
		}
	}
	tr.State = state
	log.Info().Str("state", string(tr.State)).Int("matched", tr.Matched).Int("unresolved", len(tr.Unresolved)).
		Msg("Type reconciled")
	return tr
}

// clearStale removes unresolved records of (slug, t) not reproduced by this
// run and returns their titles.
func (r *Reconciler) clearStale(ctx context.Context, slug string, t models.EpisodeType, reproduced map[string]bool) ([]string, error) {
	prev, err := r.store.ListUnresolvedFor(ctx, slug, t)
	if err != nil {
		return nil, err
	}
	var resolved []string
	for _, u := range prev {
		if reproduced[u.CatalogTitle] {
			continue
		}
		if err := r.store.ResolveUnresolved(ctx, slug, t, u.CatalogTitle); err != nil {
			return resolved, err
		}
		resolved = append(resolved, u.CatalogTitle)
	}
	return resolved, nil
}

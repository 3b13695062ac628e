// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package coordinator serialises runs per scope.
//
// A scope is either one show ("show:naruto") or the whole scheduled service
// ("service:anime_episode_type"). At most one run holds a scope at a time;
// a second request gets models.ErrAlreadyRunning. Every lease carries a
// deadline: a lease past it is force-cleared on the next status query or
// acquisition, and the scope is then reported as not having completed
// cleanly. Leases are also persisted so a crash mid-run is reported the same
// way after restart (see Recover).
//
// The coordinator is injected into the scheduler, the HTTP API and the CLI;
// none of them keep their own running flags.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/episodarr/internal/events"
	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/reconcile"
)

// ServiceName is the scheduled batch service.
const ServiceName = "anime_episode_type"

// UncleanMessage is reported for a scope whose last run never finished.
const UncleanMessage = "run did not complete cleanly"

// ShowScope is the lock scope of one show.
func ShowScope(slug string) string { return "show:" + slug }

// ServiceScope is the lock scope of a named batch service.
func ServiceScope(name string) string { return "service:" + name }

func scopeKind(scope string) string {
	kind, _, _ := strings.Cut(scope, ":")
	return kind
}

// Reconciler runs one show.
type Reconciler interface {
	ReconcileShow(ctx context.Context, slug string, ro reconcile.RunOptions) *models.ShowReport
}

// Store persists run flags, reports and the scheduled show set.
type Store interface {
	ScheduledBindings(ctx context.Context) ([]models.ShowBinding, error)
	MarkRunStarted(ctx context.Context, rec *models.RunRecord) error
	MarkRunFinished(ctx context.Context, scope string) error
	StaleRuns(ctx context.Context) ([]models.RunRecord, error)
	SaveReport(ctx context.Context, scope string, r *models.RunReport) error
	LastReport(ctx context.Context, scope string) (*models.RunReport, error)
}

// Config bounds runs.
type Config struct {
	Workers     int
	LockTimeout time.Duration
}

// DefaultConfig returns 3 workers and a 2h lease.
func DefaultConfig() Config {
	return Config{Workers: 3, LockTimeout: 2 * time.Hour}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPublisher sends run events to p.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.pub = p }
}

type lease struct {
	id       string
	started  time.Time
	deadline time.Time
	cancel   context.CancelFunc
}

// Coordinator owns every run lease.
type Coordinator struct {
	rec   Reconciler
	store Store
	pub   events.Publisher
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	leases  map[string]*lease
	unclean map[string]bool

	// background tracks runs started by Trigger*.
	background sync.WaitGroup
}

// New creates a Coordinator.
func New(rec Reconciler, st Store, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}
	c := &Coordinator{
		rec:     rec,
		store:   st,
		cfg:     cfg,
		now:     time.Now,
		leases:  make(map[string]*lease),
		unclean: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recover marks every run flag left by a previous process as unclean and
// clears it. Call once at startup before accepting runs.
func (c *Coordinator) Recover(ctx context.Context) error {
	stale, err := c.store.StaleRuns(ctx)
	if err != nil {
		return fmt.Errorf("load run flags: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range stale {
		logging.Warn().Str("scope", r.Scope).Str("run_id", r.ID).Time("started_at", r.StartedAt).
			Msg("Previous run did not complete cleanly")
		c.unclean[r.Scope] = true
		if err := c.store.MarkRunFinished(ctx, r.Scope); err != nil {
			return fmt.Errorf("clear run flag %s: %w", r.Scope, err)
		}
	}
	return nil
}

// acquireLocked takes scope or returns ErrAlreadyRunning. Must hold c.mu.
// An empty id generates a new run id.
func (c *Coordinator) acquireLocked(ctx context.Context, scope, id string) (*lease, error) {
	now := c.now()
	c.expireLocked(ctx, scope, now)
	if l, ok := c.leases[scope]; ok {
		metrics.RecordRunRejected(scopeKind(scope))
		return nil, fmt.Errorf("%s: %w (run %s since %s)", scope, models.ErrAlreadyRunning, l.id,
			l.started.Format(time.RFC3339))
	}
	if id == "" {
		id = logging.GenerateRunID()
	}
	l := &lease{id: id, started: now, deadline: now.Add(c.cfg.LockTimeout)}
	if err := c.store.MarkRunStarted(ctx, &models.RunRecord{
		ID: l.id, Scope: scope, StartedAt: l.started, Deadline: l.deadline,
	}); err != nil {
		return nil, fmt.Errorf("persist run flag: %w", err)
	}
	c.leases[scope] = l
	return l, nil
}

// expireLocked force-clears scope when its lease is past the deadline.
func (c *Coordinator) expireLocked(ctx context.Context, scope string, now time.Time) {
	l, ok := c.leases[scope]
	if !ok || now.Before(l.deadline) {
		return
	}
	logging.Warn().Str("scope", scope).Str("run_id", l.id).Time("deadline", l.deadline).
		Msg("Run exceeded its deadline, clearing lock")
	if l.cancel != nil {
		l.cancel()
	}
	delete(c.leases, scope)
	c.unclean[scope] = true
	if err := c.store.MarkRunFinished(ctx, scope); err != nil {
		logging.Warn().Err(err).Str("scope", scope).Msg("Failed to clear run flag")
	}
}

// release drops scope if l still holds it. A run that was cancelled or hit
// its deadline leaves the scope marked unclean.
func (c *Coordinator) release(ctx context.Context, scope string, l *lease, clean bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.leases[scope]; !ok || cur != l {
		// Force-cleared while running; the new holder owns the flag.
		return
	}
	delete(c.leases, scope)
	if clean {
		delete(c.unclean, scope)
	} else {
		c.unclean[scope] = true
	}
	if err := c.store.MarkRunFinished(context.WithoutCancel(ctx), scope); err != nil {
		logging.Warn().Err(err).Str("scope", scope).Msg("Failed to clear run flag")
	}
}

// Status reports whether scope is running and how it last ended.
func (c *Coordinator) Status(ctx context.Context, scope string) models.RunStatus {
	c.mu.Lock()
	c.expireLocked(ctx, scope, c.now())
	st := models.RunStatus{Scope: scope, Unclean: c.unclean[scope]}
	if l, ok := c.leases[scope]; ok {
		started := l.started
		st.Running = true
		st.RunID = l.id
		st.StartedAt = &started
	}
	c.mu.Unlock()

	if st.Unclean {
		st.Message = UncleanMessage
	}
	if r, err := c.store.LastReport(ctx, scope); err == nil {
		st.LastReport = r
	}
	return st
}

// Running lists the scopes currently held.
func (c *Coordinator) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.leases))
	for s := range c.leases {
		out = append(out, s)
	}
	return out
}

// Wait blocks until every triggered background run has returned.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

// Shutdown cancels every active run and waits for triggered runs to return
// or ctx to end. Cancelled scopes are marked unclean.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for _, l := range c.leases {
		if l.cancel != nil {
			l.cancel()
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for runs to stop: %w", ctx.Err())
	}
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, e); err != nil {
		logging.Debug().Err(err).Str("event", string(e.Type)).Msg("Event not published")
	}
}

// begin acquires scope and derives the run context bounded by the lease.
func (c *Coordinator) begin(ctx context.Context, scope string) (context.Context, *lease, error) {
	c.mu.Lock()
	l, err := c.acquireLocked(ctx, scope, "")
	if err != nil {
		c.mu.Unlock()
		c.publish(ctx, events.Event{Type: events.TypeRunRejected, Scope: scope, Message: err.Error()})
		return nil, nil, err
	}
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.LockTimeout)
	l.cancel = cancel
	c.mu.Unlock()

	runCtx = logging.ContextWithRunID(runCtx, l.id)
	return runCtx, l, nil
}

// RunShow reconciles one show synchronously.
func (c *Coordinator) RunShow(ctx context.Context, slug string, dryRun bool) (*models.RunReport, error) {
	scope := ShowScope(slug)
	runCtx, l, err := c.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	return c.runShow(runCtx, scope, slug, l, dryRun), nil
}

func (c *Coordinator) runShow(ctx context.Context, scope, slug string, l *lease, dryRun bool) *models.RunReport {
	defer l.cancel()
	report := c.startReport(ctx, scope, l, dryRun)

	abort := &atomic.Bool{}
	show := c.rec.ReconcileShow(ctx, slug, reconcile.RunOptions{DryRun: dryRun, Abort: abort})
	report.Shows = append(report.Shows, show)
	report.AuthError = abort.Load()
	c.publish(ctx, events.Event{Type: events.TypeShowFinished, Scope: scope, RunID: l.id, Show: show})

	c.finish(ctx, scope, l, report)
	return report
}

// RunAll reconciles every scheduled show on the worker pool. A show whose
// own scope is busy is reported as skipped; the rest of the batch continues.
func (c *Coordinator) RunAll(ctx context.Context, dryRun bool) (*models.RunReport, error) {
	scope := ServiceScope(ServiceName)
	runCtx, l, err := c.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	return c.runAll(runCtx, scope, l, dryRun), nil
}

func (c *Coordinator) runAll(ctx context.Context, scope string, l *lease, dryRun bool) *models.RunReport {
	defer l.cancel()
	report := c.startReport(ctx, scope, l, dryRun)
	log := logging.Ctx(ctx)

	bindings, err := c.store.ScheduledBindings(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load scheduled shows")
		c.finish(ctx, scope, l, report)
		return report
	}
	log.Info().Int("shows", len(bindings)).Int("workers", c.cfg.Workers).Bool("dry_run", dryRun).
		Msg("Batch run started")

	abort := &atomic.Bool{}
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(c.cfg.Workers)
	for _, b := range bindings {
		p.Go(func() {
			show := c.batchShow(ctx, l, b.Slug, dryRun, abort)
			mu.Lock()
			report.Shows = append(report.Shows, show)
			mu.Unlock()
			c.publish(ctx, events.Event{Type: events.TypeShowFinished, Scope: scope, RunID: l.id, Show: show})
		})
	}
	p.Wait()

	report.AuthError = abort.Load()
	report.SortShows()
	c.finish(ctx, scope, l, report)
	return report
}

// batchShow runs one show of a batch under its own show scope.
func (c *Coordinator) batchShow(ctx context.Context, parent *lease, slug string, dryRun bool, abort *atomic.Bool) *models.ShowReport {
	scope := ShowScope(slug)
	c.mu.Lock()
	l, err := c.acquireLocked(ctx, scope, parent.id)
	c.mu.Unlock()
	if err != nil {
		logging.Ctx(ctx).Warn().Str("show", slug).Msg("Show already running, skipped in batch")
		return &models.ShowReport{Slug: slug, Title: slug, Error: err.Error()}
	}

	show := c.rec.ReconcileShow(ctx, slug, reconcile.RunOptions{DryRun: dryRun, Abort: abort})
	if err := c.store.SaveReport(context.WithoutCancel(ctx), scope, &models.RunReport{
		RunID: parent.id, Scope: scope, StartedAt: parent.started, FinishedAt: c.now(),
		DryRun: dryRun, Shows: []*models.ShowReport{show}, AuthError: abort.Load(),
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save show report")
	}
	c.release(ctx, scope, l, ctx.Err() == nil)
	return show
}

func (c *Coordinator) startReport(ctx context.Context, scope string, l *lease, dryRun bool) *models.RunReport {
	c.publish(ctx, events.Event{Type: events.TypeRunStarted, Scope: scope, RunID: l.id})
	return &models.RunReport{RunID: l.id, Scope: scope, StartedAt: l.started, DryRun: dryRun, Shows: []*models.ShowReport{}}
}

// finish saves the report, records metrics and releases the scope.
func (c *Coordinator) finish(ctx context.Context, scope string, l *lease, report *models.RunReport) {
	report.FinishedAt = c.now()
	failed := report.AuthError
	for _, s := range report.Shows {
		if s.Failed() {
			failed = true
		}
	}
	metrics.RecordRun(scopeKind(scope), report.FinishedAt.Sub(report.StartedAt), failed)

	added, addFailed, unresolved := report.Totals()
	logging.Ctx(ctx).Info().Str("scope", scope).Int("shows", len(report.Shows)).Int("added", added).
		Int("add_failed", addFailed).Int("unresolved", unresolved).Bool("failed", failed).
		Msg("Run finished")

	detached := context.WithoutCancel(ctx)
	if err := c.store.SaveReport(detached, scope, report); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save run report")
	}
	c.release(detached, scope, l, ctx.Err() == nil)
	c.publish(detached, events.Event{Type: events.TypeRunFinished, Scope: scope, RunID: l.id, Run: report})
}

// TriggerShow starts RunShow in the background and returns its run id.
// The run is detached from ctx; it ends on its lease deadline.
func (c *Coordinator) TriggerShow(ctx context.Context, slug string, dryRun bool) (string, error) {
	scope := ShowScope(slug)
	runCtx, l, err := c.begin(context.WithoutCancel(ctx), scope)
	if err != nil {
		return "", err
	}
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.runShow(runCtx, scope, slug, l, dryRun)
	}()
	return l.id, nil
}

// TriggerAll starts RunAll in the background and returns its run id.
func (c *Coordinator) TriggerAll(ctx context.Context, dryRun bool) (string, error) {
	scope := ServiceScope(ServiceName)
	runCtx, l, err := c.begin(context.WithoutCancel(ctx), scope)
	if err != nil {
		return "", err
	}
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.runAll(runCtx, scope, l, dryRun)
	}()
	return l.id, nil
}

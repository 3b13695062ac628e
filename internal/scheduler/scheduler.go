// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package scheduler fires the batch run on a configured schedule.
//
// Schedule types mirror the configuration: run (once at start), hourly,
// daily, weekly, monthly and raw 5-field cron. Missed fire times are not
// caught up; a tick that finds the previous run still going is skipped.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

// RunFunc starts one batch run and blocks until it finishes.
type RunFunc func(ctx context.Context, dryRun bool) (*models.RunReport, error)

// Scheduler is a suture service driving RunFunc from a Schedule.
type Scheduler struct {
	schedule Schedule
	loc      *time.Location
	run      RunFunc
	dryRun   bool
	logger   zerolog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now and time.After (tests).
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// New creates a Scheduler. A nil loc means UTC.
func New(schedule Schedule, loc *time.Location, run RunFunc, dryRun bool, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		schedule: schedule,
		loc:      loc,
		run:      run,
		dryRun:   dryRun,
		logger:   logging.WithComponent("scheduler"),
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve waits for each fire time and runs the batch. It returns when ctx is
// cancelled or the schedule is exhausted.
func (s *Scheduler) Serve(ctx context.Context) error {
	_, once := s.schedule.(Once)
	s.logger.Info().Str("schedule", s.schedule.String()).Str("timezone", s.loc.String()).
		Bool("dry_run", s.dryRun).Msg("Scheduler started")

	var last time.Time
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := s.now().In(s.loc)
		from := now
		if !last.IsZero() && !from.After(last) {
			// An early timer must not fire the same slot twice.
			from = last
		}
		next := s.schedule.Next(from)
		if next.IsZero() {
			s.logger.Warn().Msg("Schedule has no further fire times")
			<-ctx.Done()
			return ctx.Err()
		}
		if wait := next.Sub(now); wait > 0 {
			s.logger.Info().Time("next_run", next).Dur("in", wait).Msg("Next scheduled run")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.after(wait):
			}
		}

		last = next
		s.fire(ctx)
		if once {
			<-ctx.Done()
			return ctx.Err()
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	report, err := s.run(ctx, s.dryRun)
	switch {
	case errors.Is(err, models.ErrAlreadyRunning):
		s.logger.Warn().Msg("Previous run still in progress, skipping this tick")
	case err != nil:
		s.logger.Error().Err(err).Msg("Scheduled run failed to start")
	default:
		added, failed, unresolved := report.Totals()
		s.logger.Info().Str("run_id", report.RunID).Int("shows", len(report.Shows)).Int("added", added).
			Int("failed", failed).Int("unresolved", unresolved).Msg("Scheduled run finished")
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string { return "scheduler" }

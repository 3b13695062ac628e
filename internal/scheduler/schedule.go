// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/models"
)

// Schedule yields fire times.
type Schedule interface {
	// Next returns the first fire time after t, or the zero time when the
	// schedule will not fire again.
	Next(t time.Time) time.Time
	String() string
}

// Once fires a single time, immediately.
type Once struct{}

// Next returns t itself; the scheduler consumes it at most once.
func (Once) Next(t time.Time) time.Time { return t }

func (Once) String() string { return "run" }

// union fires at the earliest of its members.
type union []*Cron

func (u union) Next(t time.Time) time.Time {
	var best time.Time
	for _, c := range u {
		if n := c.Next(t); !n.IsZero() && (best.IsZero() || n.Before(best)) {
			best = n
		}
	}
	return best
}

func (u union) String() string {
	parts := make([]string, len(u))
	for i, c := range u {
		parts[i] = c.String()
	}
	return strings.Join(parts, " | ")
}

var weekdays = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4, "friday": 5, "saturday": 6,
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// FromConfig builds the schedule and its location. Every non-cron type is
// compiled to one or more cron expressions.
func FromConfig(cfg config.SchedulerConfig) (Schedule, *time.Location, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: scheduler timezone %q: %v", models.ErrConfigInvalid, cfg.Timezone, err)
		}
		loc = l
	}

	var exprs []string
	switch cfg.Type {
	case "run":
		return Once{}, loc, nil
	case "hourly":
		exprs = []string{fmt.Sprintf("%d * * * *", cfg.Minute)}
	case "daily":
		for _, t := range cfg.Times {
			h, m, err := clock(t)
			if err != nil {
				return nil, nil, err
			}
			exprs = append(exprs, fmt.Sprintf("%d %d * * *", m, h))
		}
	case "weekly":
		h, m, err := clock(cfg.Time)
		if err != nil {
			return nil, nil, err
		}
		days := make([]string, 0, len(cfg.Days))
		for _, d := range cfg.Days {
			n, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q is not a weekday", models.ErrConfigInvalid, d)
			}
			days = append(days, strconv.Itoa(n))
		}
		exprs = []string{fmt.Sprintf("%d %d * * %s", m, h, strings.Join(days, ","))}
	case "monthly":
		h, m, err := clock(cfg.Time)
		if err != nil {
			return nil, nil, err
		}
		dates := make([]string, 0, len(cfg.Dates))
		for _, d := range cfg.Dates {
			dates = append(dates, strconv.Itoa(d))
		}
		exprs = []string{fmt.Sprintf("%d %d %s * *", m, h, strings.Join(dates, ","))}
	case "cron":
		exprs = []string{cfg.Cron}
	default:
		return nil, nil, fmt.Errorf("%w: unknown schedule type %q", models.ErrConfigInvalid, cfg.Type)
	}
	if len(exprs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s schedule has no times", models.ErrConfigInvalid, cfg.Type)
	}

	u := make(union, 0, len(exprs))
	for _, e := range exprs {
		c, err := ParseCron(e)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
		}
		u = append(u, c)
	}
	return u, loc, nil
}

// clock parses HH:MM.
func clock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if ok {
		hour, err = strconv.Atoi(hh)
		if err == nil {
			minute, err = strconv.Atoi(mm)
		}
	}
	if !ok || err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q is not HH:MM", models.ErrConfigInvalid, s)
	}
	return hour, minute, nil
}

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
)

// bits is a set of small integers (0..63).
type bits uint64

func (b bits) has(v int) bool { return b&(1<<uint(v)) != 0 }

// Cron is a parsed 5-field expression: minute hour day-of-month month day-of-week.
//
// Supported syntax per field: "*", "n", "n-m", "a,b,c", "*/s", "n-m/s", "n/s".
// Day-of-week accepts 0-7 with both 0 and 7 meaning Sunday. When both day
// fields are restricted, a time matching either one fires (standard cron).
type Cron struct {
	expr    string
	minutes bits
	hours   bits
	dom     bits
	months  bits
	dow     bits

	domAny, dowAny bool
}

// ParseCron parses expr.
//
//	"0 3 * * *"     daily at 03:00
//	"30 4 * * 1,4"  Monday and Thursday at 04:30
//	"*/15 * * * *"  every 15 minutes
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	specs := []struct {
		name   string
		lo, hi int
	}{
		{"minute", 0, 59}, {"hour", 0, 23}, {"day-of-month", 1, 31}, {"month", 1, 12}, {"day-of-week", 0, 7},
	}
	var parsed [5]bits
	for i, s := range specs {
		b, err := parseField(fields[i], s.lo, s.hi)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", s.name, err)
		}
		parsed[i] = b
	}
	dow := parsed[4]
	if dow.has(7) {
		dow = dow&^(1<<7) | 1
	}
	return &Cron{
		expr:    expr,
		minutes: parsed[0],
		hours:   parsed[1],
		dom:     parsed[2],
		months:  parsed[3],
		dow:     dow,
		domAny:  fields[2] == "*",
		dowAny:  fields[4] == "*",
	}, nil
}

func parseField(field string, lo, hi int) (bits, error) {
	var out bits
	for _, part := range strings.Split(field, ",") {
		b, err := parsePart(part, lo, hi)
		if err != nil {
			return 0, err
		}
		out |= b
	}
	return out, nil
}

func parsePart(part string, lo, hi int) (bits, error) {
	rng, stepText, hasStep := strings.Cut(part, "/")
	step := 1
	if hasStep {
		s, err := strconv.Atoi(stepText)
		if err != nil || s <= 0 {
			return 0, fmt.Errorf("invalid step %q", stepText)
		}
		step = s
	}

	start, end := lo, hi
	switch {
	case rng == "*":
	case strings.Contains(rng, "-"):
		a, b, _ := strings.Cut(rng, "-")
		var err error
		if start, err = strconv.Atoi(a); err != nil {
			return 0, fmt.Errorf("invalid range start %q", a)
		}
		if end, err = strconv.Atoi(b); err != nil {
			return 0, fmt.Errorf("invalid range end %q", b)
		}
	default:
		v, err := strconv.Atoi(rng)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", rng)
		}
		start = v
		if !hasStep {
			end = v
		}
	}
	if start < lo || end > hi || start > end {
		return 0, fmt.Errorf("%q out of range %d-%d", part, lo, hi)
	}

	var b bits
	for v := start; v <= end; v += step {
		b |= 1 << uint(v)
	}
	return b, nil
}

func (c *Cron) dayMatches(t time.Time) bool {
	dom, dow := c.dom.has(t.Day()), c.dow.has(int(t.Weekday()))
	switch {
	case c.domAny && c.dowAny:
		return true
	case c.domAny:
		return dow
	case c.dowAny:
		return dom
	}
	return dom || dow
}

// Next returns the first matching minute strictly after after, in after's
// location. It returns the zero time when nothing matches within five years
// (e.g. "0 0 31 2 *").
func (c *Cron) Next(after time.Time) time.Time {
	loc := after.Location()
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !c.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !c.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !c.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !c.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (c *Cron) String() string { return c.expr }

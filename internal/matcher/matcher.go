// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package matcher binds catalog episode titles to tracking-service episodes.
//
// Matching is pure: no I/O, no store access. Overrides are passed in as a
// map keyed by the catalog title. The pipeline, first hit wins:
//
//  1. override lookup (target resolved by normalized title)
//  2. normalized exact match
//  3. token-overlap score >= threshold, strictly ahead of the runner-up
//  4. hybrid mode only: ordinal position in the absolute episode sequence
//
// Anything else is unresolved with a reason.
package matcher

import (
	"fmt"
	"strings"

	"github.com/tomtom215/episodarr/internal/models"
)

// Mode selects the fallback behaviour.
type Mode string

const (
	// ModeTitle resolves by title only.
	ModeTitle Mode = "title"
	// ModeHybrid falls back to the catalog ordinal when no title matches.
	ModeHybrid Mode = "hybrid"
)

// DefaultThreshold is the minimum token-overlap score accepted.
const DefaultThreshold = 0.6

// Method records which rule produced a match.
type Method string

const (
	MethodOverride Method = "override"
	MethodExact    Method = "exact"
	MethodFuzzy    Method = "fuzzy"
	MethodOrdinal  Method = "ordinal"
)

// Options configures a Matcher.
type Options struct {
	Threshold float64
	Mode      Mode
}

// DefaultOptions returns title mode with the 0.6 threshold.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Mode: ModeTitle}
}

// Result is the outcome of matching one catalog title.
type Result struct {
	Episode    *models.TrackedEpisode
	Method     Method
	Score      float64
	Reason     models.UnresolvedReason
	Candidates []string
}

// Resolved reports whether Episode is set.
func (r Result) Resolved() bool { return r.Episode != nil }

// Err returns nil for a match, otherwise an error wrapping
// ErrMatchUnresolved (or ErrOverrideInconsistent for a dangling override).
func (r Result) Err() error {
	switch {
	case r.Resolved():
		return nil
	case r.Reason == models.ReasonOverrideTargetNotFound:
		return fmt.Errorf("%w: %w", models.ErrMatchUnresolved, models.ErrOverrideInconsistent)
	case len(r.Candidates) > 0:
		return fmt.Errorf("%w: %s between %s", models.ErrMatchUnresolved, r.Reason, strings.Join(r.Candidates, " | "))
	}
	return fmt.Errorf("%w: %s", models.ErrMatchUnresolved, r.Reason)
}

type indexed struct {
	ep     models.TrackedEpisode
	norm   string
	tokens map[string]struct{}
}

// Matcher holds a show's tracked episodes pre-normalized so that matching
// every catalog episode of the show does not re-normalize them.
type Matcher struct {
	opts     Options
	episodes []indexed
	byNorm   map[string][]int
	absolute []int
}

// New indexes tracked for matching. The slice is not retained.
func New(tracked []models.TrackedEpisode, opts Options) *Matcher {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Mode == "" {
		opts.Mode = ModeTitle
	}
	m := &Matcher{
		opts:     opts,
		episodes: make([]indexed, len(tracked)),
		byNorm:   make(map[string][]int, len(tracked)),
	}
	for i, ep := range tracked {
		n := Normalize(ep.Title)
		m.episodes[i] = indexed{ep: ep, norm: n, tokens: Tokens(n)}
		if n != "" {
			m.byNorm[n] = append(m.byNorm[n], i)
		}
		// Season 0 holds specials; they have no place in the absolute order.
		if ep.Season > 0 {
			m.absolute = append(m.absolute, i)
		}
	}
	return m
}

// Match runs the pipeline for one catalog episode.
func (m *Matcher) Match(ep models.CatalogEpisode, overrides map[string]string) Result {
	if target, ok := overrides[ep.Title]; ok {
		if idxs := m.byNorm[Normalize(target)]; len(idxs) > 0 {
			return m.hit(idxs[0], MethodOverride, 1)
		}
		return Result{Reason: models.ReasonOverrideTargetNotFound, Candidates: []string{target}}
	}

	normalized := Normalize(ep.Title)
	if idxs := m.byNorm[normalized]; len(idxs) == 1 {
		return m.hit(idxs[0], MethodExact, 1)
	} else if len(idxs) > 1 {
		return Result{Reason: models.ReasonAmbiguous, Candidates: m.titles(idxs)}
	}

	res := m.fuzzy(Tokens(normalized))
	if res.Resolved() || res.Reason == models.ReasonAmbiguous {
		return res
	}

	if m.opts.Mode == ModeHybrid && ep.Number >= 1 && ep.Number <= len(m.absolute) {
		return m.hit(m.absolute[ep.Number-1], MethodOrdinal, 0)
	}
	return res
}

func (m *Matcher) fuzzy(catalog map[string]struct{}) Result {
	if len(catalog) == 0 {
		return Result{Reason: models.ReasonNoMatch}
	}

	best, second := 0, 0
	var top []int
	for i := range m.episodes {
		shared := 0
		for tok := range catalog {
			if _, ok := m.episodes[i].tokens[tok]; ok {
				shared++
			}
		}
		switch {
		case shared > best:
			second = best
			best = shared
			top = append(top[:0], i)
		case shared == best && shared > 0:
			top = append(top, i)
			second = best
		case shared > second:
			second = shared
		}
	}

	score := float64(best) / float64(len(catalog))
	if best == 0 || score < m.opts.Threshold-1e-9 {
		return Result{Reason: models.ReasonNoMatch, Score: score}
	}
	if len(top) > 1 || second == best {
		return Result{Reason: models.ReasonAmbiguous, Score: score, Candidates: m.titles(top)}
	}
	return m.hit(top[0], MethodFuzzy, score)
}

func (m *Matcher) hit(i int, method Method, score float64) Result {
	ep := m.episodes[i].ep
	return Result{Episode: &ep, Method: method, Score: score}
}

func (m *Matcher) titles(idxs []int) []string {
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = m.episodes[idx].ep.Label()
	}
	return out
}

// Match is a one-shot convenience over New(tracked, opts).Match.
func Match(catalogTitle string, tracked []models.TrackedEpisode, overrides map[string]string, opts Options) Result {
	return New(tracked, opts).Match(models.CatalogEpisode{Title: catalogTitle}, overrides)
}

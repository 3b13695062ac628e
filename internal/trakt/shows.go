// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/tomtom215/episodarr/internal/models"
)

// IDs holds the identifiers the service returns for an item.
type IDs struct {
	Trakt int64  `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
	TVDB  int64  `json:"tvdb,omitempty"`
}

// Show is a tracked show.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Episode is one episode of a show.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

type season struct {
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes"`
}

type searchResult struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Show  *Show   `json:"show,omitempty"`
}

// GetShowEpisodes returns every episode of the show, specials included,
// ordered by season then episode number.
func (c *Client) GetShowEpisodes(ctx context.Context, showID int64) ([]models.TrackedEpisode, error) {
	var seasons []season
	if _, err := c.do(ctx, requestConfig{
		operation: "show_episodes",
		method:    http.MethodGet,
		path:      "/shows/" + strconv.FormatInt(showID, 10) + "/seasons",
		query:     url.Values{"extended": {"episodes"}},
		auth:      true,
	}, &seasons); err != nil {
		return nil, err
	}

	var out []models.TrackedEpisode
	for _, s := range seasons {
		for _, e := range s.Episodes {
			if e.IDs.Trakt == 0 {
				continue
			}
			seasonNum := e.Season
			if seasonNum == 0 && s.Number != 0 {
				seasonNum = s.Number
			}
			out = append(out, models.TrackedEpisode{
				Season:   seasonNum,
				Number:   e.Number,
				Title:    e.Title,
				RemoteID: e.IDs.Trakt,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// ResolveShowByTMDB maps a TMDB id to a show. models.ErrNotFound when the
// service does not know it.
func (c *Client) ResolveShowByTMDB(ctx context.Context, tmdbID int64) (*Show, error) {
	var results []searchResult
	if _, err := c.do(ctx, requestConfig{
		operation: "search_tmdb",
		method:    http.MethodGet,
		path:      "/search/tmdb/" + strconv.FormatInt(tmdbID, 10),
		query:     url.Values{"type": {"show"}},
		auth:      true,
	}, &results); err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Show != nil {
			return r.Show, nil
		}
	}
	return nil, fmt.Errorf("tmdb %d: %w", tmdbID, models.ErrNotFound)
}

// SearchShow runs a text search and returns matching shows, best first.
func (c *Client) SearchShow(ctx context.Context, query string) ([]Show, error) {
	var results []searchResult
	if _, err := c.do(ctx, requestConfig{
		operation: "search_show",
		method:    http.MethodGet,
		path:      "/search/show",
		query:     url.Values{"query": {query}, "limit": {"10"}},
		auth:      true,
	}, &results); err != nil {
		return nil, err
	}
	shows := make([]Show, 0, len(results))
	for _, r := range results {
		if r.Show != nil {
			shows = append(shows, *r.Show)
		}
	}
	return shows, nil
}

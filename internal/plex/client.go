// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package plex reads show titles and external ids from a Plex Media Server.

It is used for two things only: orphan detection (which bound library
titles no longer exist) and show id resolution (the TMDB guid of a library
show). The library is never modified.

Endpoints:
  - GET /library/sections                       library sections
  - GET /library/sections/{key}/all?includeGuids=1  shows with guids
*/
package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/ratelimit"
)

const serviceName = "plex"

// Config selects the server and the libraries to read.
type Config struct {
	URL   string
	Token string
	// Libraries restricts reads to these section titles; empty means every
	// show section.
	Libraries []string
	Timeout   time.Duration
}

// Client is a read-only Plex client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     *ratelimit.Policy
	breaker    *ratelimit.Breaker
}

// NewClient creates a Plex client. policy and breaker may be nil.
func NewClient(cfg Config, policy *ratelimit.Policy, breaker *ratelimit.Breaker, hc *http.Client) *Client {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if policy == nil {
		policy = ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig(serviceName))
	}
	if breaker == nil {
		breaker = ratelimit.NewBreaker(ratelimit.BreakerConfig{Name: serviceName})
	}
	return &Client{cfg: cfg, httpClient: hc, policy: policy, breaker: breaker}
}

type sectionsResponse struct {
	MediaContainer struct {
		Directory []section `json:"Directory"`
	} `json:"MediaContainer"`
}

type section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type itemsResponse struct {
	MediaContainer struct {
		Metadata []item `json:"Metadata"`
	} `json:"MediaContainer"`
}

type item struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Guid      []struct {
		ID string `json:"id"`
	} `json:"Guid"`
}

// tmdbID returns the numeric id of a "tmdb://<id>" guid, or 0.
func (it item) tmdbID() int64 {
	for _, g := range it.Guid {
		if rest, ok := strings.CutPrefix(g.ID, "tmdb://"); ok {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}

// ListShowTitles returns the titles of every show in the selected libraries.
func (c *Client) ListShowTitles(ctx context.Context) ([]string, error) {
	items, err := c.shows(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return titles, nil
}

// FindShowTMDBID returns the TMDB id of the library show whose title equals
// title (case-insensitively). models.ErrNotFound when the show is missing or
// carries no TMDB guid.
func (c *Client) FindShowTMDBID(ctx context.Context, title string) (int64, error) {
	items, err := c.shows(ctx)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if !strings.EqualFold(it.Title, title) {
			continue
		}
		if id := it.tmdbID(); id != 0 {
			return id, nil
		}
		return 0, fmt.Errorf("plex show %q has no tmdb guid: %w", title, models.ErrNotFound)
	}
	return 0, fmt.Errorf("plex show %q: %w", title, models.ErrNotFound)
}

func (c *Client) shows(ctx context.Context) ([]item, error) {
	var secs sectionsResponse
	if err := c.getJSON(ctx, "sections", "/library/sections", nil, &secs); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(c.cfg.Libraries))
	for _, l := range c.cfg.Libraries {
		wanted[strings.ToLower(l)] = true
	}

	var out []item
	for _, s := range secs.MediaContainer.Directory {
		if s.Type != "show" {
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(s.Title)] {
			continue
		}
		var items itemsResponse
		q := url.Values{"includeGuids": {"1"}, "type": {"2"}}
		if err := c.getJSON(ctx, "section_all", "/library/sections/"+url.PathEscape(s.Key)+"/all", q, &items); err != nil {
			return nil, fmt.Errorf("library %q: %w", s.Title, err)
		}
		out = append(out, items.MediaContainer.Metadata...)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, result any) error {
	err := c.policy.Do(ctx, operation, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			return c.roundTrip(ctx, operation, path, query, result)
		})
	})
	if err != nil {
		return fmt.Errorf("plex %s: %w", operation, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, operation, path string, query url.Values, result any) error {
	reqURL := c.cfg.URL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordOutbound(serviceName, operation, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", models.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	metrics.RecordOutbound(serviceName, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return &models.HTTPStatusError{Service: serviceName, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

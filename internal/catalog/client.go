// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package catalog scrapes episode classifications from AnimeFillerList.
//
// A show page (/shows/<slug>) carries one table row per episode: number,
// title, type label. The show index (/shows) links every known slug and
// backs Search. Requests are paced by a token bucket and guarded by a
// circuit breaker. Page bodies are kept in an in-process LRU for
// Config.CacheTTL and serve Search and TypeCounts; ListEpisodes, which
// feeds reconciliation, always reads the live page.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/episodarr/internal/cache"
	"github.com/tomtom215/episodarr/internal/matcher"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/ratelimit"
)

const serviceName = "catalog"

// Config holds scraper settings.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
	// CacheTTL keeps fetched pages in memory for this long; zero disables
	// the page cache.
	CacheTTL  time.Duration
	CacheSize int
}

// DefaultConfig paces at one request every two seconds.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://www.animefillerlist.com",
		RequestsPerSecond: 0.5,
		Burst:             1,
		Timeout:           30 * time.Second,
		UserAgent:         "episodarr/1.0 (+https://github.com/tomtom215/episodarr)",
	}
}

// Client fetches catalog pages.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     *ratelimit.Policy
	breaker    *ratelimit.Breaker
	pages      *cache.LRU[string, string]
}

// NewClient creates a catalog client. policy and breaker may be nil.
func NewClient(cfg Config, policy *ratelimit.Policy, breaker *ratelimit.Breaker, hc *http.Client) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
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
	c := &Client{
		cfg:        cfg,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		policy:     policy,
		breaker:    breaker,
	}
	if cfg.CacheTTL > 0 {
		c.pages = cache.NewLRU[string, string](cfg.CacheSize, cfg.CacheTTL)
	}
	return c
}

// ListEpisodes returns every classified episode of the show in page order.
// It always fetches the page and refreshes the page cache with it.
// An unknown slug yields an error wrapping models.ErrNotFound.
func (c *Client) ListEpisodes(ctx context.Context, slug string) ([]models.CatalogEpisode, error) {
	return c.listEpisodes(ctx, slug, true)
}

func (c *Client) listEpisodes(ctx context.Context, slug string, fresh bool) ([]models.CatalogEpisode, error) {
	body, err := c.fetch(ctx, "show_page", "/shows/"+url.PathEscape(slug), fresh)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", slug, err)
	}
	eps, err := parseEpisodes(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", slug, err)
	}
	return eps, nil
}

// TypeCounts counts the show's episodes per type, from the page cache when
// it holds the show.
func (c *Client) TypeCounts(ctx context.Context, slug string) (*models.TypeCounts, error) {
	eps, err := c.listEpisodes(ctx, slug, false)
	if err != nil {
		return nil, err
	}
	out := &models.TypeCounts{Slug: slug, Counts: make(map[models.EpisodeType]int, len(models.AllEpisodeTypes))}
	for _, t := range models.AllEpisodeTypes {
		out.Counts[t] = 0
	}
	for _, e := range eps {
		out.Counts[e.Type]++
	}
	return out, nil
}

// Search returns shows from the catalog index whose title or slug contains
// every word of query, ordered by title.
func (c *Client) Search(ctx context.Context, query string) ([]models.CatalogShow, error) {
	words := strings.Fields(matcher.Normalize(query))
	if len(words) == 0 {
		return nil, nil
	}

	body, err := c.fetch(ctx, "show_index", "/shows", false)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	shows, err := parseShowIndex(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	var out []models.CatalogShow
	for _, s := range shows {
		hay := matcher.Normalize(s.Title) + " " + matcher.Normalize(strings.ReplaceAll(s.Slug, "-", " "))
		if containsAll(hay, words) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func containsAll(hay string, words []string) bool {
	fields := strings.Fields(hay)
	for _, w := range words {
		found := false
		for _, f := range fields {
			if strings.HasPrefix(f, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// fetch GETs path and returns the body, paced and retried. Unless fresh
// is set, successful bodies are served from the page cache until they expire.
func (c *Client) fetch(ctx context.Context, operation, path string, fresh bool) (string, error) {
	if c.pages != nil && !fresh {
		if body, ok := c.pages.Get(path); ok {
			return body, nil
		}
	}

	var body string
	err := c.policy.Do(ctx, operation, func(ctx context.Context) error {
		start := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		metrics.RecordLimiterWait(serviceName, time.Since(start))

		return c.breaker.Execute(func() error {
			b, err := c.get(ctx, operation, path)
			if err == nil {
				body = b
			}
			return err
		})
	})
	if err == nil && c.pages != nil {
		c.pages.Add(path, body)
	}
	return body, err
}

func (c *Client) get(ctx context.Context, operation, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordOutbound(serviceName, operation, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", models.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	metrics.RecordOutbound(serviceName, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &models.RateLimitError{}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.HTTPStatusError{Service: serviceName, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", models.ErrTransientNetwork, err)
	}
	return string(data), nil
}

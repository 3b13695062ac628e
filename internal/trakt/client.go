// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/ratelimit"
)

const (
	apiVersion  = "2"
	serviceName = "trakt"

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 512
)

// Config holds the client settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Username owns the lists; "me" is used when empty.
	Username string
	Timeout  time.Duration
	// RefreshWindow: tokens expiring within this window are refreshed first.
	RefreshWindow time.Duration
}

// Client talks to the tracking service on behalf of one authenticated user.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *TokenStore
	limiter    *ratelimit.Limiter
	policy     *ratelimit.Policy
	breaker    *ratelimit.Breaker

	refreshGroup singleflight.Group
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client. tokens may be nil for the unauthenticated
// device-code endpoints only.
func NewClient(cfg Config, tokens *TokenStore, limiter *ratelimit.Limiter, policy *ratelimit.Policy, breaker *ratelimit.Breaker, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.trakt.tv"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = time.Hour
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultLimiterConfig())
	}
	if policy == nil {
		policy = ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig(serviceName))
	}
	if breaker == nil {
		breaker = ratelimit.NewBreaker(ratelimit.BreakerConfig{Name: serviceName})
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		limiter:    limiter,
		policy:     policy,
		breaker:    breaker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState exposes the circuit state for status endpoints.
func (c *Client) BreakerState() string { return c.breaker.State() }

func (c *Client) user() string {
	if c.cfg.Username == "" {
		return "me"
	}
	return url.PathEscape(c.cfg.Username)
}

// requestConfig describes one API call.
type requestConfig struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	// auth attaches the bearer token, refreshing it first when needed.
	auth bool
	// expect lists accepted status codes; empty means 200 only.
	expect []int
}

// response carries what callers need beyond the decoded body.
type response struct {
	status    int
	pageCount int
}

// do runs cfg through limiter, retry policy and breaker and decodes the body
// into result when it is non-nil.
func (c *Client) do(ctx context.Context, cfg requestConfig, result any) (*response, error) {
	var payload []byte
	if cfg.body != nil {
		var err error
		if payload, err = json.Marshal(cfg.body); err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", cfg.operation, err)
		}
	}

	// Resolved up front so a refresh never runs inside the breaker.
	var token string
	if cfg.auth {
		var err error
		if token, err = c.accessToken(ctx); err != nil {
			return nil, fmt.Errorf("trakt %s: %w", cfg.operation, err)
		}
	}

	var out *response
	err := c.policy.Do(ctx, cfg.operation, func(ctx context.Context) error {
		if err := c.wait(ctx, cfg.method); err != nil {
			return err
		}
		return c.breaker.Execute(func() error {
			resp, err := c.roundTrip(ctx, cfg, token, payload, result)
			if err == nil {
				out = resp
			}
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("trakt %s: %w", cfg.operation, err)
	}
	return out, nil
}

func (c *Client) wait(ctx context.Context, method string) error {
	if method == http.MethodGet {
		return c.limiter.WaitRead(ctx)
	}
	return c.limiter.WaitWrite(ctx)
}

func (c *Client) roundTrip(ctx context.Context, cfg requestConfig, token string, payload []byte, result any) (*response, error) {
	reqURL := c.cfg.BaseURL + cfg.path
	if len(cfg.query) > 0 {
		reqURL += "?" + cfg.query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.cfg.ClientID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordOutbound(serviceName, cfg.operation, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", models.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	metrics.RecordOutbound(serviceName, cfg.operation, resp.StatusCode, time.Since(start))

	if !accepted(resp.StatusCode, cfg.expect) {
		return nil, statusError(resp)
	}

	out := &response{status: resp.StatusCode}
	if v := resp.Header.Get("X-Pagination-Page-Count"); v != "" {
		out.pageCount, _ = strconv.Atoi(v)
	}
	if result != nil && resp.StatusCode != http.StatusNoContent && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return out, nil
}

func accepted(status int, expect []int) bool {
	if len(expect) == 0 {
		return status == http.StatusOK
	}
	for _, s := range expect {
		if s == status {
			return true
		}
	}
	return false
}

// statusError converts an unexpected response into the error taxonomy.
func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &models.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &models.HTTPStatusError{
		Service:    serviceName,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// accessToken returns a valid token, refreshing it when it is close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("%w: no token store configured", models.ErrAuthExpired)
	}
	tok, err := c.tokens.Load()
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%w: not authenticated, run 'episodarr auth'", models.ErrAuthExpired)
		}
		return "", err
	}
	if !tok.ExpiresWithin(c.cfg.RefreshWindow, time.Now()) {
		return tok.AccessToken, nil
	}

	logging.Ctx(ctx).Info().Time("expires_at", tok.ExpiresAt()).Msg("Refreshing Trakt access token")
	refreshed, err := c.RefreshToken(ctx, tok.RefreshToken)
	if err != nil {
		if !tok.ExpiresWithin(0, time.Now()) {
			// Still valid; use it and try again next call.
			logging.Ctx(ctx).Warn().Err(err).Msg("Token refresh failed, using current token")
			return tok.AccessToken, nil
		}
		return "", fmt.Errorf("%w: refresh failed: %w", models.ErrAuthExpired, err)
	}
	return refreshed.AccessToken, nil
}

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
)

// PolicyConfig configures Policy.
type PolicyConfig struct {
	Service           string
	MaxAttempts       uint
	BaseDelay         time.Duration
	RateLimitMaxDelay time.Duration
	TransientMaxDelay time.Duration
}

// DefaultPolicyConfig returns 5 attempts, 1s base, 60s/10s caps.
func DefaultPolicyConfig(service string) PolicyConfig {
	return PolicyConfig{
		Service:           service,
		MaxAttempts:       5,
		BaseDelay:         time.Second,
		RateLimitMaxDelay: 60 * time.Second,
		TransientMaxDelay: 10 * time.Second,
	}
}

// Policy is the single retry policy used for every outbound call.
//
// Only ErrRateLimited and ErrTransientNetwork are retried. A rate-limited
// error carrying Retry-After waits exactly that long; otherwise the delay is
// base*2^n capped per error kind, plus up to 25% jitter.
type Policy struct {
	cfg    PolicyConfig
	timer  retry.Timer
	jitter func(time.Duration) time.Duration
}

// PolicyOption customises a Policy.
type PolicyOption func(*Policy)

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(t retry.Timer) PolicyOption {
	return func(p *Policy) { p.timer = t }
}

// WithoutJitter disables jitter so delays are deterministic.
func WithoutJitter() PolicyOption {
	return func(p *Policy) { p.jitter = func(time.Duration) time.Duration { return 0 } }
}

// NewPolicy creates a Policy.
func NewPolicy(cfg PolicyConfig, opts ...PolicyOption) *Policy {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.TransientMaxDelay <= 0 {
		cfg.TransientMaxDelay = cfg.BaseDelay
	}
	if cfg.RateLimitMaxDelay < cfg.TransientMaxDelay {
		cfg.RateLimitMaxDelay = cfg.TransientMaxDelay
	}
	p := &Policy{
		cfg: cfg,
		jitter: func(d time.Duration) time.Duration {
			if d <= 0 {
				return 0
			}
			return rand.N(d/4 + 1)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The returned error is the last one seen.
func (p *Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.cfg.MaxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(models.IsRetryable),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return p.Delay(n, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.RecordRetry(p.cfg.Service, err)
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("service", p.cfg.Service).
				Str("operation", operation).
				Uint("attempt", n+1).
				Uint("max_attempts", p.cfg.MaxAttempts).
				Msg("Retrying request")
		}),
	}
	if p.timer != nil {
		opts = append(opts, retry.WithTimer(p.timer))
	}

	return retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return retry.Unrecoverable(err)
		}
		err := fn(ctx)
		if errors.Is(err, models.ErrAuthExpired) {
			return retry.Unrecoverable(err)
		}
		return err
	}, opts...)
}

// Delay computes the wait before retry n (0-based) after err.
func (p *Policy) Delay(n uint, err error) time.Duration {
	var rl *models.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	ceiling := p.cfg.TransientMaxDelay
	if errors.Is(err, models.ErrRateLimited) {
		ceiling = p.cfg.RateLimitMaxDelay
	}

	d := ceiling
	if n < 32 {
		if exp := p.cfg.BaseDelay << n; exp > 0 && exp < ceiling {
			d = exp
		}
	}
	return d + p.jitter(d)
}

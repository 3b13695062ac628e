// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package ratelimit gates outbound calls to third-party services.
//
// A Limiter holds two token buckets per authenticated identity: one for reads
// and a much stricter one for writes. Policy retries a call with capped
// exponential backoff, honouring Retry-After, and Breaker fails fast while a
// service is down. The Trakt and catalog clients compose all three:
//
//	lim := registry.Get(username)
//	err := policy.Do(ctx, "add_items", func(ctx context.Context) error {
//	    if err := lim.WaitWrite(ctx); err != nil {
//	        return err
//	    }
//	    return breaker.Execute(func() error { return client.post(ctx, ...) })
//	})
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/episodarr/internal/metrics"
)

// LimiterConfig sizes the two token buckets.
type LimiterConfig struct {
	ReadRequests    int
	ReadWindow      time.Duration
	ReadBurst       int
	WritesPerSecond float64
	WriteBurst      int
}

// DefaultLimiterConfig matches the Trakt API limits: 1000 GETs per 5 minutes
// and one POST/PUT/DELETE per second.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		ReadRequests:    1000,
		ReadWindow:      5 * time.Minute,
		ReadBurst:       20,
		WritesPerSecond: 1,
		WriteBurst:      1,
	}
}

// Limiter is the read/write token bucket pair for one identity.
type Limiter struct {
	read  *rate.Limiter
	write *rate.Limiter
}

// NewLimiter builds a Limiter from cfg.
func NewLimiter(cfg LimiterConfig) *Limiter {
	readRate := rate.Inf
	if cfg.ReadRequests > 0 && cfg.ReadWindow > 0 {
		readRate = rate.Limit(float64(cfg.ReadRequests) / cfg.ReadWindow.Seconds())
	}
	writeRate := rate.Inf
	if cfg.WritesPerSecond > 0 {
		writeRate = rate.Limit(cfg.WritesPerSecond)
	}
	return &Limiter{
		read:  rate.NewLimiter(readRate, max(cfg.ReadBurst, 1)),
		write: rate.NewLimiter(writeRate, max(cfg.WriteBurst, 1)),
	}
}

// WaitRead blocks until a read token is available or ctx is done.
func (l *Limiter) WaitRead(ctx context.Context) error {
	return wait(ctx, l.read, "read")
}

// WaitWrite blocks until a write token is available or ctx is done.
func (l *Limiter) WaitWrite(ctx context.Context) error {
	return wait(ctx, l.write, "write")
}

func wait(ctx context.Context, lim *rate.Limiter, bucket string) error {
	start := time.Now()
	err := lim.Wait(ctx)
	metrics.RecordLimiterWait(bucket, time.Since(start))
	if err != nil {
		return fmt.Errorf("rate limiter %s wait: %w", bucket, err)
	}
	return nil
}

// Registry hands out one Limiter per identity so that every client acting
// for the same account shares the same buckets.
type Registry struct {
	cfg      LimiterConfig
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty registry whose limiters use cfg.
func NewRegistry(cfg LimiterConfig) *Registry {
	return &Registry{cfg: cfg, limiters: make(map[string]*Limiter)}
}

// Get returns the Limiter for identity, creating it on first use.
func (r *Registry) Get(identity string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[identity]
	if !ok {
		l = NewLimiter(r.cfg)
		r.limiters[identity] = l
	}
	return l
}

// Len reports how many identities have a limiter.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

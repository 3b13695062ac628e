// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package services

import (
	"context"
	"time"
)

// PeriodicService calls fn every interval until cancelled. It is used for
// store maintenance such as Badger value-log GC.
type PeriodicService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
}

// NewPeriodicService creates the service. A non-positive interval means 10m.
func NewPeriodicService(name string, interval time.Duration, fn func(ctx context.Context)) *PeriodicService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &PeriodicService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.fn(ctx)
		}
	}
}

func (p *PeriodicService) String() string { return p.name }

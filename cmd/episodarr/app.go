// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/tomtom215/episodarr/internal/catalog"
	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/coordinator"
	"github.com/tomtom215/episodarr/internal/kometa"
	"github.com/tomtom215/episodarr/internal/listsync"
	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/matcher"
	"github.com/tomtom215/episodarr/internal/notify"
	"github.com/tomtom215/episodarr/internal/plex"
	"github.com/tomtom215/episodarr/internal/ratelimit"
	"github.com/tomtom215/episodarr/internal/reconcile"
	"github.com/tomtom215/episodarr/internal/store"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// app holds every collaborator built from one configuration. The data
// directory lock is held until Close.
type app struct {
	cfg *config.Config

	lock       *flock.Flock
	store      *store.Store
	tokens     *trakt.TokenStore
	trakt      *trakt.Client
	catalog    *catalog.Client
	plex       *plex.Client
	syncer     *listsync.Synchronizer
	lists      *listsync.Manager
	reconciler *reconcile.Reconciler
	coord      *coordinator.Coordinator
	discord    *notify.Discord
	fs         afero.Fs
}

// openApp locks the data directory, opens the store and builds the clients.
// coordOpts are passed to coordinator.New.
func openApp(cfg *config.Config, coordOpts ...coordinator.Option) (*app, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data directory %s is in use by another episodarr process; use the HTTP API while the server runs", cfg.Data.Dir)
	}

	st, err := store.Open(cfg.BadgerDir())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	a := &app{cfg: cfg, lock: lock, store: st, fs: afero.NewOsFs()}
	if err := a.buildClients(coordOpts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildClients(coordOpts []coordinator.Option) error {
	cfg := a.cfg

	var sealer trakt.Sealer
	if cfg.Security.TokenSecret != "" {
		enc, err := config.NewTokenEncryptor(cfg.Security.TokenSecret)
		if err != nil {
			return fmt.Errorf("token encryption: %w", err)
		}
		sealer = enc
	}
	a.tokens = trakt.NewTokenStore(a.fs, cfg.TokenPath(), sealer)

	limiters := ratelimit.NewRegistry(ratelimit.LimiterConfig{
		ReadRequests:    cfg.Trakt.ReadRequests,
		ReadWindow:      cfg.Trakt.ReadWindow,
		ReadBurst:       cfg.Trakt.ReadBurst,
		WritesPerSecond: cfg.Trakt.WritesPerSecond,
		WriteBurst:      cfg.Trakt.WriteBurst,
	})
	a.trakt = trakt.NewClient(
		trakt.Config{
			BaseURL:       cfg.Trakt.BaseURL,
			ClientID:      cfg.Trakt.ClientID,
			ClientSecret:  cfg.Trakt.ClientSecret,
			Username:      cfg.Trakt.Username,
			Timeout:       cfg.Trakt.Timeout,
			RefreshWindow: cfg.Trakt.RefreshWindow,
		},
		a.tokens,
		limiters.Get(cfg.Trakt.ClientID),
		ratelimit.NewPolicy(ratelimit.PolicyConfig{
			Service:           "trakt",
			MaxAttempts:       cfg.Trakt.MaxAttempts,
			BaseDelay:         cfg.Trakt.RetryBaseDelay,
			RateLimitMaxDelay: cfg.Trakt.RateLimitMaxDelay,
			TransientMaxDelay: cfg.Trakt.TransientMaxDelay,
		}),
		ratelimit.NewBreaker(ratelimit.BreakerConfig{
			Name:        "trakt",
			MaxFailures: cfg.Trakt.BreakerMaxFailures,
			Timeout:     cfg.Trakt.BreakerTimeout,
		}),
	)

	a.catalog = catalog.NewClient(catalog.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
		Timeout:           cfg.Catalog.Timeout,
		UserAgent:         cfg.Catalog.UserAgent,
		CacheTTL:          cfg.Catalog.CacheTTL,
		CacheSize:         cfg.Catalog.CacheSize,
	}, nil, nil, nil)

	// A nil *plex.Client must not reach the reconciler as a non-nil interface.
	var library reconcile.Library
	if cfg.Plex.Enabled {
		a.plex = plex.NewClient(plex.Config{
			URL:       cfg.Plex.URL,
			Token:     cfg.Plex.Token,
			Libraries: cfg.Plex.Libraries,
			Timeout:   cfg.Plex.Timeout,
		}, nil, nil, nil)
		library = a.plex
	}

	a.syncer = listsync.New(a.trakt, a.store, listsync.Config{
		BatchSize:    cfg.Sync.BatchSize,
		BatchTimeout: cfg.Sync.BatchTimeout,
		DryRun:       cfg.Sync.DryRun,
	})
	a.lists = listsync.NewManager(a.trakt, a.store)
	a.reconciler = reconcile.New(a.catalog, a.trakt, library, a.store, a.syncer, matcher.Options{
		Threshold: cfg.Matching.Threshold,
		Mode:      matcher.Mode(cfg.Matching.Mode),
	})
	a.coord = coordinator.New(a.reconciler, a.store, coordinator.Config{
		Workers:     cfg.Sync.Workers,
		LockTimeout: cfg.Sync.LockTimeout,
	}, coordOpts...)

	if cfg.Notifications.Discord.Enabled {
		a.discord = notify.NewDiscord(cfg.Notifications.Discord, nil)
	}
	return nil
}

// exporter returns nil when the Kometa export is disabled.
func (a *app) exporter(ctx context.Context) *kometa.Exporter {
	if !a.cfg.Kometa.Enabled {
		return nil
	}
	return kometa.NewExporter(a.fs, a.cfg.Kometa, a.listOwner(ctx))
}

// listOwner is the user slug public list URLs point at: the configured
// username, else the authorized profile.
func (a *app) listOwner(ctx context.Context) string {
	if a.cfg.Trakt.Username != "" {
		return a.cfg.Trakt.Username
	}
	if a.trakt.Authenticated() {
		p, err := a.trakt.Me(ctx)
		if err == nil {
			if p.IDs.Slug != "" {
				return p.IDs.Slug
			}
			return p.Username
		}
		logging.Warn().Err(err).Msg("Could not read the Trakt profile, list URLs use \"me\"")
	}
	return "me"
}

// Close releases the store and the data directory lock.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close store")
		}
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release data directory lock")
		}
	}
}

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/api"
	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/coordinator"
	"github.com/tomtom215/episodarr/internal/events"
	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/scheduler"
	"github.com/tomtom215/episodarr/internal/supervisor"
	"github.com/tomtom215/episodarr/internal/supervisor/services"
	"github.com/tomtom215/episodarr/internal/websocket"
)

const badgerGCInterval = 10 * time.Minute

func newServeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Sync.DryRun = true
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute list changes without touching Trakt")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logging.Info().Str("version", api.Version).Str("data_dir", cfg.Data.Dir).Msg("Starting episodarr")

	bus := events.NewBus(events.DefaultConfig())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close event bus")
		}
	}()

	a, err := openApp(cfg, coordinator.WithPublisher(bus))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.coord.Recover(ctx); err != nil {
		return err
	}
	if !a.trakt.Authenticated() {
		logging.Warn().Msg("Trakt is not authorized; runs will fail until 'episodarr auth' completes")
	}

	// === EVENTS ===
	router, err := events.NewRouter(bus)
	if err != nil {
		return err
	}
	hub := websocket.NewHub()
	router.Handle("websocket", hub.HandleEvent)
	if a.discord != nil {
		router.Handle("discord", a.discord.HandleEvent)
		logging.Info().Msg("Discord notifications enabled")
	}
	exporter := a.exporter(ctx)
	if exporter != nil {
		router.Handle("kometa", func(ctx context.Context, e events.Event) error {
			if e.Type != events.TypeRunFinished || e.Run == nil || e.Run.DryRun {
				return nil
			}
			lists, err := a.store.ListRemoteLists(ctx)
			if err != nil {
				return err
			}
			_, err = exporter.Export(ctx, lists, false)
			return err
		})
		logging.Info().Str("dir", cfg.Kometa.CollectionsDir).Msg("Kometa export enabled")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddEventService(router)
	tree.AddEventService(hub)

	// === SCHEDULER ===
	if cfg.Scheduler.Enabled {
		schedule, loc, err := scheduler.FromConfig(cfg.Scheduler)
		if err != nil {
			return err
		}
		tree.AddSchedulerService(scheduler.New(schedule, loc, a.coord.RunAll, cfg.Scheduler.DryRun || cfg.Sync.DryRun))
		logging.Info().Str("schedule", schedule.String()).Str("timezone", loc.String()).Msg("Scheduler enabled")
	}
	tree.AddSchedulerService(services.NewPeriodicService("badger-gc", badgerGCInterval, func(context.Context) {
		a.store.RunGC()
	}))

	// === API ===
	deps := api.Deps{
		Store:     a.store,
		Runner:    a.coord,
		Catalog:   a.catalog,
		Lists:     a.lists,
		Auth:      a.trakt,
		WebSocket: websocket.NewHandler(hub, cfg.Security.CORSOrigins),
		DryRun:    cfg.Sync.DryRun,
	}
	if a.plex != nil {
		deps.Library = a.plex
	}
	if exporter != nil {
		deps.Exporter = exporter
	}
	mw := api.NewMiddleware(api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
		APIKey:             cfg.Security.APIKey,
	})
	if cfg.Security.APIKey == "" {
		logging.Warn().Msg("security.api_key not set, the API accepts unauthenticated requests")
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.NewRouter(api.NewHandler(deps), mw),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===
	var treeErr error
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		treeErr = fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("Services stopped")

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.coord.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Runs still active at shutdown")
	}

	logging.Info().Msg("episodarr stopped")
	return treeErr
}

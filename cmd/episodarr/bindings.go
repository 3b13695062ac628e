// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/validation"
)

func newBindingsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "bindings",
		Aliases: []string{"shows"},
		Short:   "List show bindings (catalog slug to library title)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				bindings, err := a.store.ListBindings(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, bindings)
				}
				rows := make([][]string, 0, len(bindings))
				for _, b := range bindings {
					id := "-"
					if b.TraktShowID > 0 {
						id = strconv.FormatInt(b.TraktShowID, 10)
					}
					cleanup := "-"
					if b.CleanupRules != nil {
						parts := append([]string(nil), b.CleanupRules.RemovePatterns...)
						if b.CleanupRules.RemoveDashes {
							parts = append(parts, "dashes")
						}
						cleanup = strings.Join(parts, ", ")
					}
					rows = append(rows, []string{b.Slug, b.LibraryTitle, yesNo(b.Scheduled), id, cleanup, formatTime(b.UpdatedAt)})
				}
				printTable(cmd, "No shows are bound. Add one with 'episodarr bindings add'.",
					[]string{"Slug", "Library title", "Scheduled", "Trakt ID", "Cleanup", "Updated"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print bindings as JSON")
	cmd.AddCommand(
		newBindingsAddCommand(ctx),
		newBindingsRemoveCommand(ctx),
		newBindingsScheduleCommand(ctx),
		newSearchCommand(ctx),
	)
	return cmd
}

func newBindingsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title        string
		traktID      int64
		noSchedule   bool
		patterns     []string
		removeDashes bool
		clearCleanup bool
	)
	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Bind a catalog show to a library title, or update the binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.BindingRequest{
				Slug:           args[0],
				LibraryTitle:   strings.TrimSpace(title),
				TraktShowID:    traktID,
				RemovePatterns: patterns,
				RemoveDashes:   removeDashes,
				ClearCleanup:   clearCleanup,
			}
			if cmd.Flags().Changed("no-schedule") {
				scheduled := !noSchedule
				req.Scheduled = &scheduled
			}
			if verr := validation.ValidateStruct(req); verr != nil {
				return verr
			}
			return ctx.withApp(func(a *app) error {
				rctx := cmd.Context()
				b, err := a.store.GetBinding(rctx, req.Slug)
				if err != nil && !errors.Is(err, models.ErrNotFound) {
					return err
				}
				created := b == nil
				if created {
					b = &models.ShowBinding{Slug: req.Slug, Scheduled: true}
				}
				b.LibraryTitle = req.LibraryTitle
				if req.Scheduled != nil {
					b.Scheduled = *req.Scheduled
				}
				if req.TraktShowID > 0 {
					b.TraktShowID = req.TraktShowID
				}
				b.CleanupRules = req.CleanupRules(b.CleanupRules)
				if err := a.store.UpsertBinding(rctx, b); err != nil {
					return err
				}
				verb := "Updated"
				if created {
					verb = "Bound"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %q (scheduled: %s)\n", verb, b.Slug, b.LibraryTitle, yesNo(b.Scheduled))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Show title as it appears in the media library")
	cmd.Flags().Int64Var(&traktID, "trakt-id", 0, "Trakt show id, skipping show resolution")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Exclude the show from scheduled runs")
	cmd.Flags().StringSliceVar(&patterns, "remove-pattern", nil, "Regular expression removed from catalog titles before matching")
	cmd.Flags().BoolVar(&removeDashes, "remove-dashes", false, "Replace dashes in catalog titles with spaces before matching")
	cmd.Flags().BoolVar(&clearCleanup, "clear-cleanup", false, "Drop the binding's title cleanup rules")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newBindingsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <slug>",
		Short: "Remove a binding; its lists and overrides are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if err := a.store.RemoveBinding(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed binding %s\n", args[0])
				return nil
			})
		},
	}
}

func newBindingsScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "schedule <slug> <on|off>",
		Short:     "Include or exclude a show from scheduled runs",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var scheduled bool
			switch strings.ToLower(args[1]) {
			case "on", "true", "yes":
				scheduled = true
			case "off", "false", "no":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			return ctx.withApp(func(a *app) error {
				b, err := a.store.SetScheduled(cmd.Context(), args[0], scheduled)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s scheduled: %s\n", b.Slug, yesNo(b.Scheduled))
				return nil
			})
		},
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the episode catalog for show slugs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				shows, err := a.catalog.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(shows))
				for _, s := range shows {
					rows = append(rows, []string{s.Slug, s.Title})
				}
				printTable(cmd, "No catalog shows match.", []string{"Slug", "Title"}, rows, nil)
				return nil
			})
		},
	}
}

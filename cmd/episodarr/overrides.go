// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/validation"
)

func newOverridesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides <slug>",
		Short: "List the title overrides of a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				overrides, err := a.store.ListOverrides(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(overrides))
				for _, o := range overrides {
					rows = append(rows, []string{o.CatalogTitle, o.TrackedTitle, formatTime(o.UpdatedAt)})
				}
				printTable(cmd, "No overrides for "+args[0]+".",
					[]string{"Catalog title", "Trakt title", "Updated"}, rows, nil)
				return nil
			})
		},
	}
	cmd.AddCommand(newOverridesSetCommand(ctx), newOverridesDeleteCommand(ctx))
	return cmd
}

func newOverridesSetCommand(ctx *commandContext) *cobra.Command {
	var rerun bool
	var typ string
	cmd := &cobra.Command{
		Use:   "set <slug> <catalog title> <trakt title>",
		Short: "Map a catalog episode title to the Trakt episode title",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			req := models.OverrideRequest{
				Type:         models.EpisodeType(typ),
				CatalogTitle: strings.TrimSpace(args[1]),
				TrackedTitle: strings.TrimSpace(args[2]),
				Rerun:        rerun,
			}
			if !validation.IsSlug(slug) {
				return fmt.Errorf("invalid slug %q", slug)
			}
			if verr := validation.ValidateStruct(req); verr != nil {
				return verr
			}
			return ctx.withApp(func(a *app) error {
				rctx := cmd.Context()
				if _, err := a.store.GetBinding(rctx, slug); err != nil {
					return fmt.Errorf("show %s: %w", slug, err)
				}
				o := &models.TitleOverride{Slug: slug, CatalogTitle: req.CatalogTitle, TrackedTitle: req.TrackedTitle}
				if err := a.store.SetOverride(rctx, o); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Override saved: %q -> %q\n", o.CatalogTitle, o.TrackedTitle)
				if !req.Rerun {
					return nil
				}

				if err := a.coord.Recover(rctx); err != nil {
					return err
				}
				dry := a.cfg.Sync.DryRun
				report, err := a.coord.RunShow(rctx, slug, dry)
				if err != nil {
					return err
				}
				if !dry {
					afterRun(rctx, a, report)
				}
				printReport(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rerun, "rerun", false, "Run the show right after saving the override")
	cmd.Flags().StringVar(&typ, "type", "", "Episode type the title was reported under (filler, manga, anime, mixed)")
	return cmd
}

func newOverridesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug> <catalog title>",
		Short: "Delete a title override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if err := a.store.DeleteOverride(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Override removed: %q\n", args[1])
				return nil
			})
		},
	}
}

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/validation"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "run [slug]",
		Short: "Reconcile every scheduled show, or only the named show",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !validation.IsSlug(args[0]) {
				return fmt.Errorf("invalid slug %q", args[0])
			}
			return ctx.withApp(func(a *app) error {
				rctx := cmd.Context()
				if err := a.coord.Recover(rctx); err != nil {
					return err
				}
				dry := dryRun || a.cfg.Sync.DryRun

				var (
					report *models.RunReport
					err    error
				)
				if len(args) == 1 {
					report, err = a.coord.RunShow(rctx, args[0], dry)
				} else {
					report, err = a.coord.RunAll(rctx, dry)
				}
				if err != nil {
					return err
				}
				if !dry {
					afterRun(rctx, a, report)
				}

				if jsonOut {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					printReport(cmd, report)
				}
				if report.AuthError {
					return fmt.Errorf("trakt authorization expired or missing; run 'episodarr auth': %w", models.ErrAuthExpired)
				}
				return rctx.Err()
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute list changes without touching Trakt")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}

// afterRun sends notifications and refreshes the Kometa export, as the
// event handlers do under serve.
func afterRun(ctx context.Context, a *app, report *models.RunReport) {
	if a.discord != nil {
		for _, show := range report.Shows {
			if err := a.discord.NotifyShow(ctx, show); err != nil {
				logging.Warn().Err(err).Str("show", show.Slug).Msg("Discord notification failed")
			}
		}
	}
	if exp := a.exporter(ctx); exp != nil {
		lists, err := a.store.ListRemoteLists(ctx)
		if err == nil {
			_, err = exp.Export(ctx, lists, false)
		}
		if err != nil {
			logging.Warn().Err(err).Msg("Kometa export failed")
		}
	}
}

func printReport(cmd *cobra.Command, r *models.RunReport) {
	rows := make([][]string, 0, len(r.Shows)*len(models.AllEpisodeTypes))
	for _, s := range r.Shows {
		if len(s.Types) == 0 {
			rows = append(rows, []string{s.Slug, "-", "failed", "", "", "", "", "", s.Error})
			continue
		}
		for _, t := range s.Types {
			added, failed := 0, 0
			if t.Sync != nil {
				added, failed = len(t.Sync.Added), len(t.Sync.Failed)
			}
			errText := t.Error
			if errText == "" && s.Error != "" {
				errText = s.Error
			}
			rows = append(rows, []string{
				s.Slug,
				string(t.Type),
				string(t.State),
				strconv.Itoa(t.CatalogSize),
				strconv.Itoa(t.Matched),
				strconv.Itoa(added),
				strconv.Itoa(failed),
				strconv.Itoa(len(t.Unresolved)),
				errText,
			})
		}
	}
	printTable(cmd, "No shows were processed.",
		[]string{"Show", "Type", "State", "Catalog", "Matched", "Added", "Failed", "Unresolved", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)

	added, failed, unresolved := r.Totals()
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s%s: %d shows, %d added, %d failed, %d unresolved in %s\n",
		r.RunID, mode, len(r.Shows), added, failed, unresolved, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

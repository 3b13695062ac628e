// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/reconcile"
)

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Report bindings whose show is no longer in the Plex library",
		Long:  "Report bindings whose library title is missing from Plex, with their lists, and cached lists of unbound shows. Nothing is deleted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if a.plex == nil {
					return fmt.Errorf("orphan scan needs plex.enabled: %w", models.ErrConfigInvalid)
				}
				report, err := reconcile.ScanOrphans(cmd.Context(), a.plex, a.store)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}

				listsByShow := make(map[string][]string)
				for _, l := range report.Lists {
					listsByShow[l.ShowSlug] = append(listsByShow[l.ShowSlug], l.Name)
				}
				rows := make([][]string, 0, len(report.Orphaned))
				for _, b := range report.Orphaned {
					rows = append(rows, []string{b.Slug, b.LibraryTitle, truncateList(listsByShow[b.Slug], 4)})
				}
				printTable(cmd, "No orphaned bindings.", []string{"Slug", "Library title", "Lists"}, rows, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d bindings orphaned (%d library titles)\n",
					len(report.Orphaned), report.Bindings, report.LibraryTitles)

				if len(report.Unbound) > 0 {
					unbound := make([][]string, 0, len(report.Unbound))
					for _, l := range report.Unbound {
						unbound = append(unbound, []string{l.ShowSlug, l.Name, strconv.Itoa(l.MemberCount)})
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Lists of shows that are no longer bound:")
					printTable(cmd, "", []string{"Slug", "List", "Members"}, unbound,
						[]columnAlignment{alignLeft, alignLeft, alignRight})
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

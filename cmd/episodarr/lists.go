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
)

func newListsCommand(ctx *commandContext) *cobra.Command {
	var cached bool
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "List the Trakt lists managed by episodarr",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				var (
					lists []models.RemoteList
					err   error
				)
				if cached {
					lists, err = a.store.ListRemoteLists(cmd.Context())
				} else {
					lists, err = a.lists.Lists(cmd.Context())
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, lists)
				}
				rows := make([][]string, 0, len(lists))
				for _, l := range lists {
					rows = append(rows, []string{
						l.Name, l.ShowSlug, string(l.Type), strconv.Itoa(l.MemberCount),
						strconv.FormatInt(l.RemoteID, 10), formatTime(l.UpdatedAt),
					})
				}
				printTable(cmd, "No managed lists.",
					[]string{"Name", "Show", "Type", "Items", "Trakt ID", "Updated"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Read the local list cache instead of Trakt")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print lists as JSON")
	cmd.AddCommand(newListsDeleteCommand(ctx))
	return cmd
}

func newListsDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <slug> <type>",
		Short: "Delete one managed list on Trakt and from the local cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseEpisodeType(args[1])
			if err != nil {
				return err
			}
			name := models.ListName(args[0], t)
			if !yes {
				return fmt.Errorf("refusing to delete %q without --yes", name)
			}
			return ctx.withApp(func(a *app) error {
				l, err := a.lists.Delete(cmd.Context(), args[0], t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted list %s (Trakt ID %d)\n", l.Name, l.RemoteID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

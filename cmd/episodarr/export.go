// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/models"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the Kometa collections file and any missing overlay files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				exp := a.exporter(cmd.Context())
				if exp == nil {
					return fmt.Errorf("kometa export is disabled (kometa.enabled): %w", models.ErrConfigInvalid)
				}
				lists, err := a.store.ListRemoteLists(cmd.Context())
				if err != nil {
					return err
				}
				res, err := exp.Export(cmd.Context(), lists, force)
				if err != nil {
					return err
				}

				types := make([]string, 0, len(res.Lists))
				for t := range res.Lists {
					types = append(types, string(t))
				}
				sort.Strings(types)
				rows := make([][]string, 0, len(types))
				for _, t := range types {
					et := models.EpisodeType(t)
					rows = append(rows, []string{et.CollectionName(), strconv.Itoa(res.Lists[et])})
				}
				printTable(cmd, "No lists to export.", []string{"Collection", "Lists"}, rows,
					[]columnAlignment{alignLeft, alignRight})

				out := cmd.OutOrStdout()
				if res.Changed {
					fmt.Fprintf(out, "Wrote %s\n", res.CollectionsPath)
				} else {
					fmt.Fprintf(out, "%s is up to date\n", res.CollectionsPath)
				}
				for _, p := range res.OverlaysWritten {
					fmt.Fprintf(out, "Wrote %s\n", p)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Rewrite the collections file even when unchanged")
	return cmd
}

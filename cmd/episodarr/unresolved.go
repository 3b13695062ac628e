// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/models"
)

func newUnresolvedCommand(ctx *commandContext) *cobra.Command {
	var typ string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "unresolved [slug]",
		Short: "List catalog titles that could not be mapped to a Trakt episode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter models.EpisodeType
			if typ != "" {
				t, err := models.ParseEpisodeType(typ)
				if err != nil {
					return err
				}
				filter = t
			}
			return ctx.withApp(func(a *app) error {
				var (
					records []models.UnresolvedMatch
					err     error
				)
				if len(args) == 1 {
					records, err = a.store.ListUnresolvedForShow(cmd.Context(), args[0])
				} else {
					records, err = a.store.ListUnresolved(cmd.Context())
				}
				if err != nil {
					return err
				}
				out := make([]models.UnresolvedMatch, 0, len(records))
				for _, u := range records {
					if filter == "" || u.Type == filter {
						out = append(out, u)
					}
				}
				if jsonOut {
					return writeJSON(cmd, out)
				}

				rows := make([][]string, 0, len(out))
				for _, u := range out {
					num := "-"
					if u.Number > 0 {
						num = strconv.Itoa(u.Number)
					}
					rows = append(rows, []string{
						u.Slug, string(u.Type), num, u.CatalogTitle, u.Reason.Message(),
						truncateList(u.Candidates, 3), formatTime(u.LastSeen),
					})
				}
				printTable(cmd, "No unresolved titles.",
					[]string{"Show", "Type", "#", "Catalog title", "Reason", "Candidates", "Last seen"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight})
				if len(rows) > 0 {
					cmd.Println("Fix a title with: episodarr overrides set <slug> <catalog title> <trakt title> --rerun")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Only this episode type (filler, manga, anime, mixed)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")
	return cmd
}

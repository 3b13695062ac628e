// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/models"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize episodarr against Trakt with a device code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if !a.cfg.TraktCredentialsPresent() {
					return fmt.Errorf("trakt.client_id and trakt.client_secret are required: %w", models.ErrConfigInvalid)
				}
				rctx := cmd.Context()
				dc, err := a.trakt.RequestDeviceCode(rctx)
				if err != nil {
					return fmt.Errorf("request device code: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Open %s and enter the code %s\n", dc.VerificationURL, dc.UserCode)
				fmt.Fprintf(out, "Waiting for approval (expires in %ds)...\n", dc.ExpiresIn)

				if _, err := a.trakt.PollDeviceToken(rctx, dc); err != nil {
					return err
				}
				profile, err := a.trakt.Me(rctx)
				if err != nil {
					fmt.Fprintln(out, "Authorized. The token is saved.")
					return nil
				}
				fmt.Fprintf(out, "Authorized as %s. The token is saved.\n", profile.Username)
				return nil
			})
		},
	}
	cmd.AddCommand(newAuthStatusCommand(ctx), newAuthLogoutCommand(ctx))
	return cmd
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a Trakt token is stored and when it expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				tok, err := a.tokens.Load()
				if errors.Is(err, models.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not authorized. Run 'episodarr auth'.")
					return nil
				}
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Authorized", yesNo(true)},
					{"Expires", formatTime(tok.ExpiresAt())},
					{"Scope", tok.Scope},
					{"Encrypted at rest", yesNo(a.cfg.Security.TokenSecret != "")},
					{"Client ID", config.MaskCredential(a.cfg.Trakt.ClientID)},
				}
				if p, err := a.trakt.Me(cmd.Context()); err == nil {
					rows = append(rows, []string{"User", p.Username})
				} else {
					rows = append(rows, []string{"User", "unavailable: " + err.Error()})
				}
				printTable(cmd, "", []string{"Field", "Value"}, rows, nil)
				return nil
			})
		},
	}
}

func newAuthLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored Trakt token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if err := a.tokens.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Trakt token removed.")
				return nil
			})
		},
	}
}

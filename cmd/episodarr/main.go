// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Command episodarr classifies anime episodes as filler, manga canon, anime
// canon or mixed and keeps one Trakt list per show and type in sync.
//
//	episodarr serve            run the scheduler and the HTTP API
//	episodarr run [slug]       reconcile every scheduled show, or one show
//	episodarr auth             authorize against Trakt with a device code
//	episodarr bindings         manage show bindings
//	episodarr unresolved       list titles that could not be mapped
//	episodarr lists            browse or delete the managed Trakt lists
//	episodarr orphans          report bindings missing from the library
//	episodarr export           write the Kometa collections file
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/episodarr/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

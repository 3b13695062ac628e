// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/episodarr/internal/logging"
)

// HandlerFunc consumes one event.
type HandlerFunc func(ctx context.Context, e Event) error

// Router fans bus messages out to named handlers. It implements
// suture.Service through Serve.
type Router struct {
	bus    *Bus
	router *message.Router
}

// NewRouter creates a router reading from bus.
func NewRouter(bus *Bus) (*Router, error) {
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}
	return &Router{bus: bus, router: r}, nil
}

// Handle registers fn under name. Must be called before Serve.
func (r *Router) Handle(name string, fn HandlerFunc) {
	r.router.AddNoPublisherHandler(name, Topic, r.bus.pubsub, func(msg *message.Message) error {
		// Always ack: a nack on gochannel redelivers forever.
		defer func() {
			if p := recover(); p != nil {
				logging.Error().Str("handler", name).Interface("panic", p).Msg("Event handler panicked")
			}
		}()
		e, err := decode(msg)
		if err != nil {
			logging.Warn().Err(err).Str("handler", name).Msg("Dropping undecodable event")
			return nil
		}
		if err := fn(msg.Context(), e); err != nil {
			logging.Warn().Err(err).Str("handler", name).Str("event", string(e.Type)).Msg("Event handler failed")
		}
		return nil
	})
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Serve runs the router until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	if err := r.router.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (r *Router) String() string { return "event-router" }

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/episodarr/internal/logging"
)

// Handler upgrades HTTP requests to websocket clients of a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	origins  []string
}

// NewHandler returns a handler for hub. allowedOrigins follows the CORS
// setting: "*" admits any origin; an empty Origin header is always refused.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, origins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// ServeHTTP upgrades the connection and attaches it to the hub.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := newClient(h.hub, conn)
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if !c.attach(ctx) {
		logging.Warn().Msg("WebSocket hub not running, closing connection")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "hub unavailable"))
		_ = conn.Close()
		return
	}
	c.start()
}

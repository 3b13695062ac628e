// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package websocket pushes run progress to connected dashboard clients.
//
// The Hub is a supervised service: Serve owns the client set and fans each
// broadcast message out to every client in id order. Run events arrive from
// the event router through HandleEvent.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/episodarr/internal/events"
	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/metrics"
)

// Message types sent to clients.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the JSON frame exchanged with clients. Run events use the
// event type ("run.started", "show.finished", ...) as Type.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub. Serve must be running for clients to be attached.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Serve runs the hub until ctx is cancelled, then closes every client.
// Lifecycle events are drained before broadcasts so a client registered
// before a message is sent always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAll()
			logging.Info().Str("component", "websocket-hub").Int("clients_closed", n).Msg("WebSocket hub stopped")
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			continue
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.fanOut(m)
		}
	}
}

func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("WebSocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("WebSocket client disconnected")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WSConnections.Set(0)
}

// fanOut delivers m to every client in id order. A client whose buffer is
// full is dropped rather than blocking the hub.
func (h *Hub) fanOut(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- m:
			metrics.WSMessagesSent.Inc()
		default:
			close(c.send)
			delete(h.clients, c)
			logging.Warn().Uint64("client_id", c.id).Msg("WebSocket client too slow, dropped")
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// Broadcast queues m for every connected client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(m Message) {
	select {
	case h.broadcast <- m:
	default:
		logging.Warn().Str("type", m.Type).Msg("WebSocket broadcast queue full, message dropped")
	}
}

// HandleEvent forwards a run event to every client.
func (h *Hub) HandleEvent(_ context.Context, e events.Event) error {
	h.Broadcast(Message{Type: string(e.Type), Data: e})
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package events is the in-process run event bus.
//
// The coordinator publishes run lifecycle events; the websocket hub and the
// Discord notifier consume them through a watermill router:
//
//	bus := events.NewBus(events.DefaultConfig())
//	r, _ := events.NewRouter(bus)
//	r.Handle("notify", notifier.HandleEvent)
//	go r.Serve(ctx)
//	bus.Publish(ctx, events.Event{Type: events.TypeRunFinished, Run: report})
//
// Delivery is best effort: handlers that fail are logged and the message is
// acknowledged anyway, so a broken webhook never stalls the run.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

// Topic carries every run event.
const Topic = "episodarr.runs"

// Type names an event.
type Type string

const (
	TypeRunStarted   Type = "run.started"
	TypeShowFinished Type = "show.finished"
	TypeRunFinished  Type = "run.finished"
	TypeRunRejected  Type = "run.rejected"
)

// Event is one run lifecycle notification.
type Event struct {
	ID    string             `json:"id"`
	Type  Type               `json:"type"`
	Time  time.Time          `json:"time"`
	Scope string             `json:"scope"`
	RunID string             `json:"run_id,omitempty"`
	Show  *models.ShowReport `json:"show,omitempty"`
	Run   *models.RunReport  `json:"run,omitempty"`
	// Message is a human-readable note, e.g. why a run was rejected.
	Message string `json:"message,omitempty"`
}

// Publisher is what producers depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Config sizes the in-memory channel.
type Config struct {
	OutputBuffer int64
}

// DefaultConfig returns a small buffered bus.
func DefaultConfig() Config {
	return Config{OutputBuffer: 64}
}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

// Bus is a watermill gochannel pub/sub carrying JSON-encoded events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	closed atomic.Bool
}

// NewBus creates the bus.
func NewBus(cfg Config) *Bus {
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = DefaultConfig().OutputBuffer
	}
	logger := watermill.NewSlogLogger(logging.NewSlogLogger("events"))
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.OutputBuffer}, logger),
		logger: logger,
	}
}

// Publish encodes e and hands it to subscribers. ID and Time are filled
// when empty.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if e.ID == "" {
		e.ID = watermill.NewUUID()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("type", string(e.Type))
	msg.SetContext(context.WithoutCancel(ctx))
	return b.pubsub.Publish(Topic, msg)
}

// Subscribe returns a raw decoded stream. It ends when ctx is done or the
// bus is closed. Router is the usual consumer; this is for tools and tests.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			e, err := decode(msg)
			msg.Ack()
			if err != nil {
				logging.Warn().Err(err).Msg("Dropping undecodable event")
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops delivery to every subscriber.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.pubsub.Close()
}

func decode(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return e, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return e, nil
}

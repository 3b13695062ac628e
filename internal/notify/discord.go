// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package notify posts run outcomes to a Discord webhook: a green embed per
// list that gained episodes and a red embed per list with unmatched titles
// or a failed sync.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/events"
	"github.com/tomtom215/episodarr/internal/metrics"
	"github.com/tomtom215/episodarr/internal/models"
)

const (
	colorGreen = 0x57F287
	colorRed   = 0xFF0000

	maxListed  = 10
	maxDetails = 5

	fixHint = "Run 'episodarr unresolved' or POST /api/v1/shows/{slug}/overrides to resolve these titles"
)

// Discord sends embeds to one webhook, spacing messages apart.
type Discord struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter

	mu sync.Mutex
}

// NewDiscord creates the notifier. A nil client gets a 10s timeout client.
func NewDiscord(cfg config.DiscordConfig, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	spacing := cfg.MinSpacing
	if spacing <= 0 {
		spacing = time.Second
	}
	return &Discord{
		webhookURL: cfg.WebhookURL,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(spacing), 1),
	}
}

// Send posts one embed.
func (d *Discord) Send(ctx context.Context, e Embed) (err error) {
	defer func() { metrics.RecordNotification("discord", err) }()

	// Holding mu across the request keeps messages in order and spaced.
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(webhookPayload{Username: "Episodarr", Embeds: []Embed{e}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// NotifyShow sends the embeds for one show report. Dry-run additions are
// not announced.
func (d *Discord) NotifyShow(ctx context.Context, show *models.ShowReport) error {
	var firstErr error
	for _, e := range ShowEmbeds(show) {
		if err := d.Send(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleEvent is the event-router entry point.
func (d *Discord) HandleEvent(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeShowFinished || e.Show == nil {
		return nil
	}
	return d.NotifyShow(ctx, e.Show)
}

// ShowEmbeds builds the embeds for show without sending them.
func ShowEmbeds(show *models.ShowReport) []Embed {
	var out []Embed
	if show.Error != "" && len(show.Types) > 0 && allFailedWith(show) {
		return []Embed{{
			Title:       "Run Failed: " + show.Title,
			Description: fmt.Sprintf("Could not process %s.", show.Title),
			Color:       colorRed,
			Fields:      []Field{{Name: "Error Details", Value: numbered([]string{show.Error}, maxDetails, 1, "details")}},
		}}
	}
	for _, t := range show.Types {
		kind := strings.ToLower(t.Type.CatalogLabel())
		if t.Sync != nil && !t.Sync.DryRun && len(t.Sync.Added) > 0 {
			out = append(out, Embed{
				Title:       "New Episodes Added: " + show.Title,
				Description: fmt.Sprintf("Successfully added %d new %s episodes for %s.", len(t.Sync.Added), kind, show.Title),
				Color:       colorGreen,
				Fields: []Field{{
					Name:  "Added Episodes",
					Value: numbered(t.AddedTitles, maxListed, len(t.Sync.Added), "episodes"),
				}},
			})
		}
		if len(t.Unresolved) > 0 || t.State == models.StateFailed {
			out = append(out, errorEmbed(show, t, kind))
		}
	}
	return out
}

func allFailedWith(show *models.ShowReport) bool {
	for _, t := range show.Types {
		if t.Error != show.Error {
			return false
		}
	}
	return true
}

func errorEmbed(show *models.ShowReport, t *models.TypeReport, kind string) Embed {
	e := Embed{
		Title:       "Mapping Errors: " + show.Title,
		Description: fmt.Sprintf("Failed to map %d %s episodes for %s.", len(t.Unresolved), kind, show.Title),
		Color:       colorRed,
	}
	if len(t.Unresolved) > 0 {
		e.Fields = append(e.Fields, Field{Name: "Failed Episodes", Value: numbered(t.Unresolved, maxListed, len(t.Unresolved), "episodes")})
		e.Footer = &Footer{Text: fixHint}
	}
	if t.Error != "" {
		if len(t.Unresolved) == 0 {
			e.Title = "Sync Errors: " + show.Title
			e.Description = fmt.Sprintf("The %s list for %s could not be updated.", kind, show.Title)
		}
		e.Fields = append(e.Fields, Field{Name: "Error Details", Value: numbered([]string{t.Error}, maxDetails, 1, "details")})
	}
	return e
}

// numbered renders "1. a\n2. b\n" with at most limit entries and a
// "... and N more <noun>" line when total exceeds what is shown.
func numbered(items []string, limit, total int, noun string) string {
	var b strings.Builder
	shown := min(len(items), limit)
	for i := 0; i < shown; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i+1, items[i])
	}
	if total > shown {
		fmt.Fprintf(&b, "\n... and %d more %s", total-shown, noun)
	}
	return strings.TrimRight(b.String(), "\n")
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Embed is one Discord message embed.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Footer struct {
	Text string `json:"text"`
}

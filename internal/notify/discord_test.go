// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/events"
	"github.com/tomtom215/episodarr/internal/models"
)

type webhook struct {
	mu       sync.Mutex
	payloads []webhookPayload
	status   int
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	_ = json.NewDecoder(r.Body).Decode(&p)
	w.mu.Lock()
	w.payloads = append(w.payloads, p)
	status := w.status
	w.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	rw.WriteHeader(status)
}

func newNotifier(t *testing.T, hook *webhook) *Discord {
	t.Helper()
	srv := httptest.NewServer(hook)
	t.Cleanup(srv.Close)
	return NewDiscord(config.DiscordConfig{WebhookURL: srv.URL, MinSpacing: time.Millisecond}, srv.Client())
}

func titles(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S01E%02d Episode %d", i+1, i+1)
	}
	return out
}

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestAdditionsEmbedTruncatesAtTen(t *testing.T) {
	show := &models.ShowReport{Slug: "naruto", Title: "Naruto", Types: []*models.TypeReport{{
		Type: models.EpisodeTypeFiller, State: models.StateSynced,
		Sync: &models.SyncResult{Added: ids(13)}, AddedTitles: titles(13),
	}}}
	embeds := ShowEmbeds(show)
	if len(embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(embeds))
	}
	e := embeds[0]
	if e.Color != colorGreen || e.Title != "New Episodes Added: Naruto" {
		t.Errorf("embed = %+v", e)
	}
	if !strings.Contains(e.Description, "added 13 new filler episodes") {
		t.Errorf("Description = %q", e.Description)
	}
	v := e.Fields[0].Value
	if !strings.Contains(v, "10. S01E10") || strings.Contains(v, "11. ") || !strings.HasSuffix(v, "... and 3 more episodes") {
		t.Errorf("field value = %q", v)
	}
}

func TestMappingErrorEmbed(t *testing.T) {
	show := &models.ShowReport{Slug: "naruto", Title: "Naruto", Types: []*models.TypeReport{{
		Type: models.EpisodeTypeMangaCanon, State: models.StatePartiallyMatched,
		Unresolved: []string{"Some Odd Title"},
	}}}
	embeds := ShowEmbeds(show)
	if len(embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(embeds))
	}
	e := embeds[0]
	if e.Color != colorRed || e.Footer == nil || !strings.Contains(e.Footer.Text, "episodarr unresolved") {
		t.Errorf("embed = %+v", e)
	}
	if e.Fields[0].Name != "Failed Episodes" || e.Fields[0].Value != "1. Some Odd Title" {
		t.Errorf("fields = %+v", e.Fields)
	}
}

func TestDryRunAndQuietReportsSendNothing(t *testing.T) {
	show := &models.ShowReport{Slug: "naruto", Title: "Naruto", Types: []*models.TypeReport{
		{Type: models.EpisodeTypeFiller, State: models.StateSynced, Sync: &models.SyncResult{Added: ids(2), DryRun: true}},
		{Type: models.EpisodeTypeAnimeCanon, State: models.StateEmpty},
		{Type: models.EpisodeTypeMixed, State: models.StateSynced, Sync: &models.SyncResult{AlreadyPresent: ids(4)}},
	}}
	if embeds := ShowEmbeds(show); len(embeds) != 0 {
		t.Errorf("embeds = %+v, want none", embeds)
	}
}

func TestWholeShowFailureIsOneEmbed(t *testing.T) {
	msg := "catalog fetch: transient network error"
	show := &models.ShowReport{Slug: "naruto", Title: "Naruto", Error: msg}
	for _, typ := range models.AllEpisodeTypes {
		show.Types = append(show.Types, &models.TypeReport{Type: typ, State: models.StateFailed, Error: msg})
	}
	embeds := ShowEmbeds(show)
	if len(embeds) != 1 || !strings.HasPrefix(embeds[0].Title, "Run Failed") {
		t.Errorf("embeds = %+v", embeds)
	}
}

func TestHandleEventPostsToWebhook(t *testing.T) {
	hook := &webhook{}
	d := newNotifier(t, hook)
	show := &models.ShowReport{Slug: "naruto", Title: "Naruto", Types: []*models.TypeReport{
		{Type: models.EpisodeTypeFiller, State: models.StateSynced, Sync: &models.SyncResult{Added: ids(1)}, AddedTitles: titles(1)},
		{Type: models.EpisodeTypeMangaCanon, State: models.StateFailed, Error: "sync partially failed"},
	}}

	if err := d.HandleEvent(context.Background(), events.Event{Type: events.TypeRunStarted}); err != nil {
		t.Fatalf("HandleEvent(run.started) error = %v", err)
	}
	if err := d.HandleEvent(context.Background(), events.Event{Type: events.TypeShowFinished, Show: show}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if len(hook.payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(hook.payloads))
	}
	if hook.payloads[0].Username != "Episodarr" || hook.payloads[0].Embeds[0].Color != colorGreen {
		t.Errorf("first payload = %+v", hook.payloads[0])
	}
	second := hook.payloads[1].Embeds[0]
	if !strings.HasPrefix(second.Title, "Sync Errors") || second.Fields[0].Name != "Error Details" {
		t.Errorf("second embed = %+v", second)
	}
	if second.Timestamp == "" {
		t.Error("Timestamp not set")
	}
}

func TestSendReportsHTTPError(t *testing.T) {
	hook := &webhook{status: http.StatusBadRequest}
	d := newNotifier(t, hook)
	if err := d.Send(context.Background(), Embed{Title: "x"}); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("Send() error = %v, want status 400", err)
	}
}

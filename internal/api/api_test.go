// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

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
	"github.com/spf13/afero"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/kometa"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/store"
)

type fakeRunner struct {
	mu       sync.Mutex
	busy     bool
	shows    []string
	all      int
	lastDry  bool
	statuses map[string]models.RunStatus
}

func (f *fakeRunner) TriggerShow(_ context.Context, slug string, dryRun bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return "", fmt.Errorf("show:%s: %w", slug, models.ErrAlreadyRunning)
	}
	f.shows = append(f.shows, slug)
	f.lastDry = dryRun
	return "run-" + slug, nil
}

func (f *fakeRunner) TriggerAll(_ context.Context, dryRun bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return "", fmt.Errorf("service:anime_episode_type: %w", models.ErrAlreadyRunning)
	}
	f.all++
	f.lastDry = dryRun
	return "run-all", nil
}

func (f *fakeRunner) Status(_ context.Context, scope string) models.RunStatus {
	if s, ok := f.statuses[scope]; ok {
		return s
	}
	return models.RunStatus{Scope: scope}
}

func (f *fakeRunner) Running() []string { return nil }

type fakeLists struct {
	lists   []models.RemoteList
	deleted []string
}

func (f *fakeLists) Lists(context.Context) ([]models.RemoteList, error) { return f.lists, nil }

func (f *fakeLists) Delete(_ context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error) {
	name := models.ListName(slug, t)
	for _, l := range f.lists {
		if l.Name == name {
			f.deleted = append(f.deleted, name)
			return &l, nil
		}
	}
	return nil, fmt.Errorf("list %s: %w", name, models.ErrNotFound)
}

type fakeLibrary []string

func (f fakeLibrary) ListShowTitles(context.Context) ([]string, error) { return f, nil }

type fakeCatalog struct{}

func (fakeCatalog) Search(_ context.Context, q string) ([]models.CatalogShow, error) {
	return []models.CatalogShow{{Slug: "naruto", Title: "Naruto"}}, nil
}

func (fakeCatalog) TypeCounts(_ context.Context, slug string) (*models.TypeCounts, error) {
	if slug != "naruto" {
		return nil, fmt.Errorf("catalog %s: %w", slug, models.ErrNotFound)
	}
	return &models.TypeCounts{Slug: slug, Counts: map[models.EpisodeType]int{models.EpisodeTypeFiller: 91}}, nil
}

type env struct {
	store  *store.Store
	runner *fakeRunner
	lists  *fakeLists
	fs     afero.Fs
	server *httptest.Server
}

func newEnv(t *testing.T, apiKey string) *env {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	e := &env{
		store:  st,
		runner: &fakeRunner{statuses: map[string]models.RunStatus{}},
		lists:  &fakeLists{},
		fs:     afero.NewMemMapFs(),
	}
	kcfg := config.Defaults().Kometa
	h := NewHandler(Deps{
		Store:    st,
		Runner:   e.runner,
		Catalog:  fakeCatalog{},
		Lists:    e.lists,
		Library:  fakeLibrary{"Naruto"},
		Exporter: kometa.NewExporter(e.fs, kcfg, "me"),
	})
	mw := NewMiddleware(MiddlewareConfig{CORSAllowedOrigins: []string{"*"}, RateLimitDisabled: true, APIKey: apiKey})
	e.server = httptest.NewServer(NewRouter(h, mw))
	t.Cleanup(e.server.Close)
	return e
}

type result struct {
	status int
	body   models.APIResponse
	raw    []byte
}

func (e *env) do(t *testing.T, method, path, body string, hdr ...string) result {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var res result
	res.status = resp.StatusCode
	dec := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err == nil {
		res.raw = raw
		_ = json.Unmarshal(raw, &res.body)
	}
	return res
}

func (r result) data(t *testing.T, v interface{}) {
	t.Helper()
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.raw, &wrapper); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(wrapper.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, wrapper.Data)
	}
}

func (r result) code() string {
	if r.body.Error == nil {
		return ""
	}
	return r.body.Error.Code
}

func TestBindingLifecycle(t *testing.T) {
	e := newEnv(t, "")

	res := e.do(t, http.MethodPost, "/api/v1/shows", `{"slug":"naruto","library_title":"Naruto","remove_patterns":["[HD] "]}`)
	if res.status != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", res.status, res.raw)
	}
	var b models.ShowBinding
	res.data(t, &b)
	if !b.Scheduled || b.CleanupRules == nil || b.CleanupRules.RemovePatterns[0] != "[HD] " {
		t.Errorf("created binding = %+v", b)
	}

	res = e.do(t, http.MethodPost, "/api/v1/shows", `{"slug":"naruto","library_title":"Naruto Classic"}`)
	if res.status != http.StatusOK {
		t.Fatalf("update status = %d", res.status)
	}

	res = e.do(t, http.MethodPut, "/api/v1/shows/naruto/scheduled", `{"scheduled":false}`)
	if res.status != http.StatusOK {
		t.Fatalf("scheduled status = %d (%s)", res.status, res.raw)
	}

	res = e.do(t, http.MethodGet, "/api/v1/shows/naruto", "")
	res.data(t, &b)
	if b.LibraryTitle != "Naruto Classic" || b.Scheduled {
		t.Errorf("binding = %+v", b)
	}
	if b.CleanupRules == nil || len(b.CleanupRules.RemovePatterns) != 1 {
		t.Errorf("title-only update dropped cleanup rules: %+v", b.CleanupRules)
	}

	res = e.do(t, http.MethodPost, "/api/v1/shows", `{"slug":"naruto","library_title":"Naruto Classic","clear_cleanup":true}`)
	if res.status != http.StatusOK {
		t.Fatalf("clear cleanup status = %d (%s)", res.status, res.raw)
	}
	res.data(t, &b)
	if b.CleanupRules != nil {
		t.Errorf("cleanup rules after clear = %+v", b.CleanupRules)
	}

	var all []models.ShowBinding
	e.do(t, http.MethodGet, "/api/v1/shows", "").data(t, &all)
	if len(all) != 1 {
		t.Errorf("bindings = %d, want 1", len(all))
	}

	if res := e.do(t, http.MethodDelete, "/api/v1/shows/naruto", ""); res.status != http.StatusOK {
		t.Fatalf("delete status = %d", res.status)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/shows/naruto", ""); res.status != http.StatusNotFound || res.code() != "NOT_FOUND" {
		t.Errorf("get after delete = %d %q", res.status, res.code())
	}
}

func TestBindingValidation(t *testing.T) {
	e := newEnv(t, "")

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad slug", `{"slug":"Not A Slug","library_title":"x"}`, "VALIDATION_ERROR"},
		{"missing title", `{"slug":"naruto"}`, "VALIDATION_ERROR"},
		{"bad json", `{"slug":`, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.do(t, http.MethodPost, "/api/v1/shows", tt.body)
			if res.status != http.StatusBadRequest || res.code() != tt.code {
				t.Errorf("status = %d code = %q, want 400 %q", res.status, res.code(), tt.code)
			}
		})
	}

	if res := e.do(t, http.MethodGet, "/api/v1/shows/Bad_Slug", ""); res.status != http.StatusBadRequest {
		t.Errorf("bad path slug status = %d", res.status)
	}
}

func TestOverrideWithRerun(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	if err := e.store.UpsertBinding(ctx, &models.ShowBinding{Slug: "naruto", LibraryTitle: "Naruto", Scheduled: true}); err != nil {
		t.Fatal(err)
	}
	for _, u := range []models.UnresolvedMatch{
		{Slug: "naruto", Type: models.EpisodeTypeMangaCanon, CatalogTitle: "The Retitled One", Reason: models.ReasonNoMatch},
		{Slug: "naruto", Type: models.EpisodeTypeFiller, CatalogTitle: "Something Else", Reason: models.ReasonNoMatch},
	} {
		u := u
		if err := e.store.RecordUnresolved(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}

	res := e.do(t, http.MethodPost, "/api/v1/shows/naruto/overrides",
		`{"type":"manga","catalog_title":"The Retitled One","tracked_title":"The Adventure Number 200","rerun":true}`)
	if res.status != http.StatusOK {
		t.Fatalf("status = %d (%s)", res.status, res.raw)
	}
	var got overrideResponse
	res.data(t, &got)
	if got.RunID != "run-naruto" || len(e.runner.shows) != 1 {
		t.Errorf("run id = %q, triggers = %v", got.RunID, e.runner.shows)
	}
	if len(got.Pending) != 1 || got.Pending[0].Type != models.EpisodeTypeMangaCanon {
		t.Errorf("pending = %+v", got.Pending)
	}

	overrides, err := e.store.OverrideMap(ctx, "naruto")
	if err != nil {
		t.Fatal(err)
	}
	if overrides["The Retitled One"] != "The Adventure Number 200" {
		t.Errorf("override map = %v", overrides)
	}

	res = e.do(t, http.MethodDelete, "/api/v1/shows/naruto/overrides?catalog_title=The+Retitled+One", "")
	if res.status != http.StatusOK {
		t.Fatalf("delete override status = %d", res.status)
	}
	if res := e.do(t, http.MethodPost, "/api/v1/shows/bleach/overrides", `{"catalog_title":"a","tracked_title":"b"}`); res.status != http.StatusNotFound {
		t.Errorf("override for unbound show status = %d, want 404", res.status)
	}
}

func TestUnresolvedFilters(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	for _, u := range []models.UnresolvedMatch{
		{Slug: "naruto", Type: models.EpisodeTypeMangaCanon, CatalogTitle: "A", Reason: models.ReasonNoMatch},
		{Slug: "naruto", Type: models.EpisodeTypeFiller, CatalogTitle: "B", Reason: models.ReasonAmbiguous},
		{Slug: "bleach", Type: models.EpisodeTypeFiller, CatalogTitle: "C", Reason: models.ReasonNoMatch},
	} {
		u := u
		if err := e.store.RecordUnresolved(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}

	var out []models.UnresolvedMatch
	e.do(t, http.MethodGet, "/api/v1/unresolved", "").data(t, &out)
	if len(out) != 3 {
		t.Errorf("all = %d, want 3", len(out))
	}
	e.do(t, http.MethodGet, "/api/v1/unresolved?type=filler", "").data(t, &out)
	if len(out) != 2 {
		t.Errorf("filler = %d, want 2", len(out))
	}
	e.do(t, http.MethodGet, "/api/v1/shows/naruto/unresolved", "").data(t, &out)
	if len(out) != 2 {
		t.Errorf("naruto = %d, want 2", len(out))
	}
	if res := e.do(t, http.MethodGet, "/api/v1/unresolved?type=recap", ""); res.status != http.StatusBadRequest {
		t.Errorf("bad type status = %d", res.status)
	}
}

func TestRunTriggers(t *testing.T) {
	e := newEnv(t, "")
	if err := e.store.UpsertBinding(context.Background(), &models.ShowBinding{Slug: "naruto", LibraryTitle: "Naruto"}); err != nil {
		t.Fatal(err)
	}

	res := e.do(t, http.MethodPost, "/api/v1/runs", `{"dry_run":true}`)
	if res.status != http.StatusAccepted {
		t.Fatalf("status = %d", res.status)
	}
	var acc runAccepted
	res.data(t, &acc)
	if acc.RunID != "run-all" || acc.Scope != "service:anime_episode_type" || !e.runner.lastDry {
		t.Errorf("accepted = %+v dry = %v", acc, e.runner.lastDry)
	}

	res = e.do(t, http.MethodPost, "/api/v1/shows/naruto/run", "")
	if res.status != http.StatusAccepted {
		t.Fatalf("show run status = %d", res.status)
	}
	res.data(t, &acc)
	if acc.Scope != "show:naruto" || e.runner.lastDry {
		t.Errorf("accepted = %+v dry = %v", acc, e.runner.lastDry)
	}

	if res := e.do(t, http.MethodPost, "/api/v1/shows/bleach/run", ""); res.status != http.StatusNotFound {
		t.Errorf("unbound show run status = %d, want 404", res.status)
	}

	e.runner.busy = true
	res = e.do(t, http.MethodPost, "/api/v1/runs", "")
	if res.status != http.StatusConflict || res.code() != "ALREADY_RUNNING" {
		t.Errorf("busy status = %d code = %q", res.status, res.code())
	}
	if !strings.Contains(res.body.Error.Message, "already running") {
		t.Errorf("message = %q", res.body.Error.Message)
	}
}

func TestRunStatus(t *testing.T) {
	e := newEnv(t, "")
	started := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	e.runner.statuses["show:naruto"] = models.RunStatus{
		Scope: "show:naruto", Unclean: true, Message: "run did not complete cleanly", StartedAt: &started,
	}

	var st models.RunStatus
	e.do(t, http.MethodGet, "/api/v1/shows/naruto/status", "").data(t, &st)
	if !st.Unclean || st.Message != "run did not complete cleanly" {
		t.Errorf("status = %+v", st)
	}

	var ov runsOverview
	e.do(t, http.MethodGet, "/api/v1/runs", "").data(t, &ov)
	if ov.Service.Scope != "service:anime_episode_type" || ov.Running == nil {
		t.Errorf("overview = %+v", ov)
	}
}

func TestListsAndOrphans(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	e.lists.lists = []models.RemoteList{
		{RemoteID: 1, Name: "bleach_filler", ShowSlug: "bleach", Type: models.EpisodeTypeFiller},
		{RemoteID: 2, Name: "naruto_manga", ShowSlug: "naruto", Type: models.EpisodeTypeMangaCanon},
	}
	for _, b := range []models.ShowBinding{
		{Slug: "naruto", LibraryTitle: "Naruto"},
		{Slug: "bleach", LibraryTitle: "Bleach"},
	} {
		b := b
		if err := e.store.UpsertBinding(ctx, &b); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.store.PutRemoteList(ctx, &e.lists.lists[0]); err != nil {
		t.Fatal(err)
	}

	var lists []models.RemoteList
	e.do(t, http.MethodGet, "/api/v1/lists", "").data(t, &lists)
	if len(lists) != 2 {
		t.Errorf("remote lists = %d, want 2", len(lists))
	}
	e.do(t, http.MethodGet, "/api/v1/lists?source=cache", "").data(t, &lists)
	if len(lists) != 1 {
		t.Errorf("cached lists = %d, want 1", len(lists))
	}

	var orphans models.OrphanReport
	e.do(t, http.MethodGet, "/api/v1/orphans", "").data(t, &orphans)
	if len(orphans.Orphaned) != 1 || orphans.Orphaned[0].Slug != "bleach" || len(orphans.Lists) != 1 {
		t.Errorf("orphans = %+v", orphans)
	}
	if _, err := e.store.GetBinding(ctx, "bleach"); err != nil {
		t.Errorf("orphan scan removed a binding: %v", err)
	}

	if res := e.do(t, http.MethodDelete, "/api/v1/lists/bleach/filler", ""); res.status != http.StatusOK {
		t.Fatalf("delete status = %d", res.status)
	}
	if len(e.lists.deleted) != 1 || e.lists.deleted[0] != "bleach_filler" {
		t.Errorf("deleted = %v", e.lists.deleted)
	}
	if res := e.do(t, http.MethodDelete, "/api/v1/lists/bleach/recap", ""); res.status != http.StatusBadRequest {
		t.Errorf("bad type status = %d", res.status)
	}
	if res := e.do(t, http.MethodDelete, "/api/v1/lists/naruto/anime", ""); res.status != http.StatusNotFound {
		t.Errorf("missing list status = %d", res.status)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	e := newEnv(t, "")

	var shows []models.CatalogShow
	e.do(t, http.MethodGet, "/api/v1/catalog/search?q=naru", "").data(t, &shows)
	if len(shows) != 1 || shows[0].Slug != "naruto" {
		t.Errorf("search = %+v", shows)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/catalog/search", ""); res.status != http.StatusBadRequest {
		t.Errorf("empty query status = %d", res.status)
	}

	var counts models.TypeCounts
	e.do(t, http.MethodGet, "/api/v1/catalog/naruto/counts", "").data(t, &counts)
	if counts.Counts[models.EpisodeTypeFiller] != 91 {
		t.Errorf("counts = %+v", counts)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/catalog/bleach/counts", ""); res.status != http.StatusNotFound {
		t.Errorf("unknown show status = %d", res.status)
	}
}

func TestKometaExportEndpoint(t *testing.T) {
	e := newEnv(t, "")
	if err := e.store.PutRemoteList(context.Background(), &models.RemoteList{
		RemoteID: 7, Slug: "naruto-filler", Name: "naruto_filler", ShowSlug: "naruto", Type: models.EpisodeTypeFiller,
	}); err != nil {
		t.Fatal(err)
	}

	res := e.do(t, http.MethodPost, "/api/v1/kometa/export", `{"force":true}`)
	if res.status != http.StatusOK {
		t.Fatalf("status = %d (%s)", res.status, res.raw)
	}
	var out kometa.Result
	res.data(t, &out)
	if !out.Changed || out.Lists[models.EpisodeTypeFiller] != 1 {
		t.Errorf("result = %+v", out)
	}
	if ok, _ := afero.Exists(e.fs, out.CollectionsPath); !ok {
		t.Errorf("collections file %s not written", out.CollectionsPath)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	e := newEnv(t, "s3cret")

	if res := e.do(t, http.MethodGet, "/api/v1/shows", ""); res.status != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", res.status)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/shows", "", "X-API-Key", "wrong"); res.status != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", res.status)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/shows", "", "X-API-Key", "s3cret"); res.status != http.StatusOK {
		t.Errorf("header key status = %d, want 200", res.status)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/shows", "", "Authorization", "Bearer s3cret"); res.status != http.StatusOK {
		t.Errorf("bearer status = %d, want 200", res.status)
	}
	if res := e.do(t, http.MethodGet, "/api/v1/health", ""); res.status != http.StatusOK {
		t.Errorf("health status = %d, want 200 without key", res.status)
	}
}

func TestUnconfiguredDependencies(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	srv := httptest.NewServer(NewRouter(NewHandler(Deps{Store: st, Runner: &fakeRunner{}}), NewMiddleware(MiddlewareConfig{RateLimitDisabled: true})))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/api/v1/lists", "/api/v1/orphans", "/api/v1/catalog/search?q=x"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, "")
	e.do(t, http.MethodGet, "/api/v1/shows", "")

	resp, err := http.Get(e.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

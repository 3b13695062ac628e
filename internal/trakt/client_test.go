// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/ratelimit"
)

type instantTimer struct{}

func (instantTimer) After(time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Now()
	return c
}

func validToken() *Token {
	return &Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    7 * 24 * 3600,
		CreatedAt:    time.Now().Unix(),
	}
}

// newTestClient returns a client against srv with a stored, valid token.
func newTestClient(t *testing.T, srv *httptest.Server, tok *Token) (*Client, *TokenStore) {
	t.Helper()
	store := NewTokenStore(afero.NewMemMapFs(), "/data/trakt_token.json", nil)
	if tok != nil {
		if err := store.Save(tok); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	limiter := ratelimit.NewLimiter(ratelimit.LimiterConfig{
		ReadRequests: 1000, ReadWindow: time.Second, ReadBurst: 1000,
		WritesPerSecond: 1000, WriteBurst: 1000,
	})
	policy := ratelimit.NewPolicy(ratelimit.PolicyConfig{
		Service: "trakt-test", MaxAttempts: 3, BaseDelay: time.Millisecond,
		RateLimitMaxDelay: time.Millisecond, TransientMaxDelay: time.Millisecond,
	}, ratelimit.WithTimer(instantTimer{}), ratelimit.WithoutJitter())
	breaker := ratelimit.NewBreaker(ratelimit.BreakerConfig{Name: "trakt-test", MaxFailures: 100})

	c := NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "tester",
	}, store, limiter, policy, breaker, WithHTTPClient(srv.Client()))
	return c, store
}

func TestAddItemsToList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/tester/lists/77/items" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("trakt-api-key"); got != "cid" {
			t.Errorf("trakt-api-key = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization = %q", got)
		}
		var req addItemsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(req.Episodes) != 3 {
			t.Errorf("episodes in body = %d, want 3", len(req.Episodes))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"added":{"episodes":1},"existing":{"episodes":1},"not_found":{"episodes":[{"ids":{"trakt":3}}]}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	res, err := c.AddItemsToList(context.Background(), 77, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("AddItemsToList() error = %v", err)
	}
	if res.Added != 1 || res.Existing != 1 {
		t.Errorf("Added/Existing = %d/%d, want 1/1", res.Added, res.Existing)
	}
	if len(res.NotFound) != 1 || res.NotFound[0] != 3 {
		t.Errorf("NotFound = %v, want [3]", res.NotFound)
	}
}

func TestGetListEpisodeIDsPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination-Page-Count", "2")
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[{"type":"episode","episode":{"ids":{"trakt":10}}},{"type":"episode","episode":{"ids":{"trakt":11}}}]`))
		case "2":
			_, _ = w.Write([]byte(`[{"type":"episode","episode":{"ids":{"trakt":12}}}]`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	ids, err := c.GetListEpisodeIDs(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetListEpisodeIDs() error = %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("ids = %v, want 3 ids", ids)
	}
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	if _, err := c.ListMyLists(context.Background()); err != nil {
		t.Fatalf("ListMyLists() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	_, err := c.ListMyLists(context.Background())
	if !errors.Is(err, models.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestServerErrorExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	_, err := c.ListMyLists(context.Background())
	if !errors.Is(err, models.ErrTransientNetwork) {
		t.Fatalf("error = %v, want ErrTransientNetwork", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (MaxAttempts)", calls.Load())
	}
}

func TestMissingTokenIsAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, nil)
	if _, err := c.ListMyLists(context.Background()); !errors.Is(err, models.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if c.Authenticated() {
		t.Error("Authenticated() = true without a token")
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			refreshes.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "refresh-1" || body["grant_type"] != "refresh_token" {
				t.Errorf("refresh body = %v", body)
			}
			_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","expires_in":604800,"created_at":` +
				jsonInt(time.Now().Unix()) + `}`))
		case "/users/tester/lists":
			if got := r.Header.Get("Authorization"); got != "Bearer access-2" {
				t.Errorf("Authorization = %q, want refreshed token", got)
			}
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tok := validToken()
	tok.ExpiresIn = 600 // inside the one hour refresh window
	c, store := newTestClient(t, srv, tok)

	if _, err := c.ListMyLists(context.Background()); err != nil {
		t.Fatalf("ListMyLists() error = %v", err)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes.Load())
	}
	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.AccessToken != "access-2" || saved.RefreshToken != "refresh-2" {
		t.Errorf("stored token = %+v, want refreshed pair", saved)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestPollDeviceToken(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":3600}`))
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv, nil)
	tok, err := c.PollDeviceToken(context.Background(), &DeviceCode{DeviceCode: "dev", Interval: 1, ExpiresIn: 60})
	if err != nil {
		t.Fatalf("PollDeviceToken() error = %v", err)
	}
	if tok.AccessToken != "a" || tok.CreatedAt == 0 {
		t.Errorf("token = %+v", tok)
	}
	if _, err := store.Load(); err != nil {
		t.Errorf("token not saved: %v", err)
	}
}

func TestPollDeviceTokenDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, nil)
	_, err := c.PollDeviceToken(context.Background(), &DeviceCode{DeviceCode: "dev", Interval: 1, ExpiresIn: 60})
	if !errors.Is(err, ErrDeviceDenied) {
		t.Fatalf("error = %v, want ErrDeviceDenied", err)
	}
}

func TestGetShowEpisodesOrdersAndSkipsUnidentified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("extended") != "episodes" {
			t.Errorf("extended = %q", r.URL.Query().Get("extended"))
		}
		_, _ = w.Write([]byte(`[
			{"number":1,"episodes":[
				{"season":1,"number":2,"title":"Second","ids":{"trakt":102}},
				{"season":1,"number":1,"title":"First","ids":{"trakt":101}}]},
			{"number":0,"episodes":[
				{"season":0,"number":1,"title":"Special","ids":{"trakt":900}},
				{"season":0,"number":2,"title":"No id","ids":{}}]}
		]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	eps, err := c.GetShowEpisodes(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetShowEpisodes() error = %v", err)
	}
	want := []int64{900, 101, 102}
	if len(eps) != len(want) {
		t.Fatalf("len = %d, want %d", len(eps), len(want))
	}
	for i, id := range want {
		if eps[i].RemoteID != id {
			t.Errorf("eps[%d].RemoteID = %d, want %d", i, eps[i].RemoteID, id)
		}
	}
}

func TestResolveShowByTMDBNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search/tmdb/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, validToken())
	if _, err := c.ResolveShowByTMDB(context.Background(), 37854); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestTokenStoreEncryptedRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	enc, err := config.NewTokenEncryptor("a-long-test-secret")
	if err != nil {
		t.Fatalf("NewTokenEncryptor() error = %v", err)
	}
	store := NewTokenStore(fs, "/data/token.json", enc)
	if err := store.Save(validToken()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := afero.ReadFile(fs, "/data/token.json")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(raw), "access-1") {
		t.Error("token file contains the plaintext access token")
	}

	fresh := NewTokenStore(fs, "/data/token.json", enc)
	got, err := fresh.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AccessToken != "access-1" {
		t.Errorf("AccessToken = %q", got.AccessToken)
	}

	if err := fresh.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := fresh.Load(); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Load() after Clear error = %v, want ErrNotFound", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("5"); got != 5*time.Second {
		t.Errorf("parseRetryAfter(5) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v", got)
	}
}

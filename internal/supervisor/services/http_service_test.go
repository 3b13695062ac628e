// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	listens     atomic.Int32
	shutdowns   atomic.Int32
	started     chan struct{}
	stop        chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.listens.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stop
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stop)
	return m.shutdownErr
}

var _ suture.Service = (*HTTPServerService)(nil)

func TestHTTPServerServiceDefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newMockHTTPServer(), d); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout(%v) = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	<-srv.started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if srv.listens.Load() != 1 || srv.shutdowns.Load() != 1 {
		t.Errorf("listens = %d shutdowns = %d", srv.listens.Load(), srv.shutdowns.Load())
	}
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	bindErr := errors.New("bind: address already in use")
	srv := newMockHTTPServer()
	srv.listenErr = bindErr
	if err := NewHTTPServerService(srv, time.Second).Serve(context.Background()); !errors.Is(err, bindErr) {
		t.Errorf("Serve() = %v, want %v", err, bindErr)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	shutdownErr := errors.New("shutdown timeout")
	srv := newMockHTTPServer()
	srv.shutdownErr = shutdownErr
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- NewHTTPServerService(srv, time.Second).Serve(ctx) }()
	<-srv.started
	cancel()
	if err := <-errCh; !errors.Is(err, shutdownErr) {
		t.Errorf("Serve() = %v, want %v", err, shutdownErr)
	}
}

func TestPeriodicServiceTicks(t *testing.T) {
	var calls atomic.Int32
	svc := NewPeriodicService("store-gc", 5*time.Millisecond, func(context.Context) { calls.Add(1) })
	if svc.String() != "store-gc" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if calls.Load() < 2 {
		t.Errorf("calls = %d, want >= 2", calls.Load())
	}
}

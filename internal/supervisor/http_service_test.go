// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stopCh      chan struct{}
	shutdowns   atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.started <- struct{}{}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Parallel()

	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		t.Parallel()

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
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if got := srv.shutdowns.Load(); got != 1 {
			t.Errorf("Shutdown called %d times, want 1", got)
		}
	})

	t.Run("listen failure is returned", func(t *testing.T) {
		t.Parallel()

		srv := newMockHTTPServer()
		srv.listenErr = errors.New("address already in use")
		svc := NewHTTPServerService(srv, time.Second)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve() error = %v, want wrapped listen error", err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		t.Parallel()

		srv := newMockHTTPServer()
		srv.shutdownErr = errors.New("deadline exceeded")
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-srv.started
		cancel()

		if err := <-errCh; !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve() error = %v, want wrapped shutdown error", err)
		}
	})

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()

		svc := NewHTTPServerService(newMockHTTPServer(), 0)
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("shutdownTimeout = %v, want 10s", svc.shutdownTimeout)
		}
		if svc.String() != "http-server" {
			t.Errorf("String() = %q", svc.String())
		}
	})
}

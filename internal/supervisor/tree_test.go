// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencewatch/internal/config"
)

// mockService counts starts and optionally fails its first few runs.
type mockService struct {
	name     string
	starts   atomic.Int32
	maxFails int32
	err      error
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.starts.Add(1)
	if n <= m.maxFails {
		return errors.New("simulated failure")
	}
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitStarts(t *testing.T, svc *mockService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want at least %d", svc.name, svc.starts.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewTree(t *testing.T) {
	t.Parallel()

	if _, err := NewTree(nil, TreeConfig{}); !errors.Is(err, ErrNilLogger) {
		t.Errorf("NewTree(nil) error = %v, want ErrNilLogger", err)
	}

	tree, err := NewTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewTree() error = %v", err)
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("zero config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
	if tree.Root() == nil || tree.Presence() == nil {
		t.Error("supervisors should not be nil")
	}
}

func TestTreeConfigFrom(t *testing.T) {
	t.Parallel()

	got := TreeConfigFrom(config.SupervisorConfig{
		FailureThreshold: 3,
		FailureDecay:     10,
		FailureBackoff:   time.Second,
		ShutdownTimeout:  2 * time.Second,
	})
	want := TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 2 * time.Second}
	if got != want {
		t.Errorf("TreeConfigFrom() = %+v, want %+v", got, want)
	}
}

func TestTreeLayers(t *testing.T) {
	t.Parallel()

	tree, err := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewTree() error = %v", err)
	}

	loopSvc := &mockService{name: "presence/alice"}
	hubSvc := &mockService{name: "stream-hub"}
	apiSvc := &mockService{name: "http-server"}

	tree.Presence().Add(loopSvc)
	tree.AddDistributionService(hubSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitStarts(t, loopSvc, 1)
	waitStarts(t, hubSvc, 1)
	waitStarts(t, apiSvc, 1)

	// Services added after start are picked up too.
	late := &mockService{name: "presence/bob"}
	tree.Presence().Add(late)
	waitStarts(t, late, 1)

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	t.Parallel()

	tree, _ := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &mockService{name: "failing", maxFails: 2}
	done := &mockService{name: "done", err: suture.ErrDoNotRestart}
	tree.AddDistributionService(failing)
	tree.Presence().Add(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitStarts(t, failing, 3)
	waitStarts(t, done, 1)

	time.Sleep(50 * time.Millisecond)
	if got := done.starts.Load(); got != 1 {
		t.Errorf("ErrDoNotRestart service started %d times, want 1", got)
	}
}

// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package retention

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type fakeDeleter struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeDeleter) DeleteSamplesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func (f *fakeDeleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestSweepCutoff(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store := &fakeDeleter{n: 42}
	r := NewReaper(store, 24*time.Hour, time.Hour)
	r.now = func() time.Time { return now }

	before := testutil.ToFloat64(metrics.RetentionDeletedRows)
	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 42 {
		t.Errorf("Sweep() = %d, want 42", n)
	}
	if want := now.Add(-24 * time.Hour); !store.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.cutoffs[0], want)
	}
	if got := testutil.ToFloat64(metrics.RetentionDeletedRows) - before; got != 42 {
		t.Errorf("deleted rows metric delta = %v", got)
	}
}

func TestSweepFailure(t *testing.T) {
	store := &fakeDeleter{err: errors.New("database is locked")}
	r := NewReaper(store, time.Hour, time.Hour)

	failures := metrics.RetentionRuns.WithLabelValues("failure")
	before := testutil.ToFloat64(failures)

	if _, err := r.Sweep(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(failures) - before; got != 1 {
		t.Errorf("failure metric delta = %v", got)
	}
}

func TestServeRunsImmediatelyAndOnInterval(t *testing.T) {
	store := &fakeDeleter{}
	r := NewReaper(store, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if store.calls() < 3 {
		t.Errorf("sweeps = %d, want >= 3", store.calls())
	}
}

func TestServeSurvivesFailures(t *testing.T) {
	store := &fakeDeleter{err: errors.New("timeout")}
	r := NewReaper(store, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() should only stop on cancel, got %v", err)
	}
	if r.String() != "retention-reaper" {
		t.Errorf("String() = %q", r.String())
	}
}

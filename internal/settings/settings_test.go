// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package settings

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]string
	listErr error
	saveErr error
	failKey string
	lists   int
	batches int
}

func newFakeStore(rows map[string]string) *fakeStore {
	if rows == nil {
		rows = map[string]string{}
	}
	return &fakeStore{rows: rows}
}

func (f *fakeStore) ListSettings(context.Context) ([]models.SettingRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.SettingRow
	for k, v := range f.rows {
		out = append(out, models.SettingRow{Key: k, Value: v})
	}
	return out, nil
}

// UpsertSettings is all-or-nothing, like the transactional store.
func (f *fakeStore) UpsertSettings(_ context.Context, values map[string]string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := values[f.failKey]; ok {
		return errors.New("constraint violation on " + f.failKey)
	}
	for k, v := range values {
		f.rows[k] = v
	}
	return nil
}

func (f *fakeStore) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func testConfig() config.SettingsConfig {
	return config.SettingsConfig{
		RefreshInterval:    time.Minute,
		GasAlertThreshold:  600,
		StopTimeoutMinutes: 5,
		MinSpeedThreshold:  3.0,
	}
}

var ignoreLoadedAt = cmpopts.IgnoreFields(models.Settings{}, "LoadedAt")

func TestDefaultsBeforeFirstLoad(t *testing.T) {
	s := New(newFakeStore(nil), testConfig())

	want := models.Settings{GasAlertThreshold: 600, StopTimeout: 5, MinSpeedThreshold: 3.0}
	if diff := cmp.Diff(want, s.Current(), ignoreLoadedAt); diff != "" {
		t.Errorf("Current() (-want +got):\n%s", diff)
	}
	if s.StopTimeout() != 5*time.Minute {
		t.Errorf("StopTimeout() = %v", s.StopTimeout())
	}
	if s.MinSpeed() != 3.0 || s.GasAlertThreshold() != 600 {
		t.Errorf("accessors = %v, %d", s.MinSpeed(), s.GasAlertThreshold())
	}
}

func TestRefresh(t *testing.T) {
	store := newFakeStore(map[string]string{
		models.SettingGasAlertThreshold:     "750",
		models.SettingBusStopTimeoutMinutes: "2.5",
		"LEGACY_FLAG":                       "on",
	})
	s := New(store, testConfig())

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := models.Settings{GasAlertThreshold: 750, StopTimeout: 2.5, MinSpeedThreshold: 3.0}
	if diff := cmp.Diff(want, s.Current(), ignoreLoadedAt); diff != "" {
		t.Errorf("Current() (-want +got):\n%s", diff)
	}
	if s.StopTimeout() != 150*time.Second {
		t.Errorf("StopTimeout() = %v, want 2m30s", s.StopTimeout())
	}
	if got := s.PublicConfig(); got != (models.PublicConfig{GasAlertThreshold: 750, BusStopTimeoutMinutes: 2.5}) {
		t.Errorf("PublicConfig() = %+v", got)
	}
}

func TestRefreshFailureKeepsLastKnownGood(t *testing.T) {
	store := newFakeStore(map[string]string{models.SettingGasAlertThreshold: "800"})
	s := New(store, testConfig())

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	store.setListErr(errors.New("connection refused"))

	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := s.GasAlertThreshold(); got != 800 {
		t.Errorf("GasAlertThreshold() = %d, want last known 800", got)
	}
}

func TestRefreshInvalidRowKeepsPrevious(t *testing.T) {
	store := newFakeStore(map[string]string{models.SettingMinSpeedThreshold: "4.5"})
	s := New(store, testConfig())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.rows[models.SettingMinSpeedThreshold] = "fast"
	store.mu.Unlock()

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.MinSpeed(); got != 4.5 {
		t.Errorf("MinSpeed() = %v, want previous 4.5", got)
	}
}

func TestUpdate(t *testing.T) {
	store := newFakeStore(nil)
	s := New(store, testConfig())

	var notified []models.Settings
	s.OnChange(func(cur models.Settings) { notified = append(notified, cur) })

	got, err := s.Update(context.Background(), map[string]string{
		models.SettingGasAlertThreshold:     "900",
		models.SettingBusStopTimeoutMinutes: "10",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.GasAlertThreshold != 900 || got.StopTimeout != 10 {
		t.Errorf("Update() = %+v", got)
	}
	if s.GasAlertThreshold() != 900 {
		t.Error("snapshot not swapped")
	}
	if store.rows[models.SettingGasAlertThreshold] != "900" || store.rows[models.SettingBusStopTimeoutMinutes] != "10" {
		t.Errorf("store rows = %v", store.rows)
	}
	if len(notified) != 1 || notified[0].GasAlertThreshold != 900 {
		t.Errorf("listeners got %+v", notified)
	}
}

func TestUpdateRejects(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]string
		wantErr error
	}{
		{"unknown key", map[string]string{"THEME": "dark"}, ErrUnknownKey},
		{"not a number", map[string]string{models.SettingGasAlertThreshold: "lots"}, ErrInvalidValue},
		{"negative gas", map[string]string{models.SettingGasAlertThreshold: "-1"}, ErrInvalidValue},
		{"gas too high", map[string]string{models.SettingGasAlertThreshold: "10001"}, ErrInvalidValue},
		{"zero timeout", map[string]string{models.SettingBusStopTimeoutMinutes: "0"}, ErrInvalidValue},
		{"nan speed", map[string]string{models.SettingMinSpeedThreshold: "NaN"}, ErrInvalidValue},
		{"one bad of two", map[string]string{models.SettingGasAlertThreshold: "700", models.SettingMinSpeedThreshold: "501"}, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(nil)
			s := New(store, testConfig())

			_, err := s.Update(context.Background(), tt.updates)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if len(store.rows) != 0 {
				t.Errorf("rejected update wrote %v", store.rows)
			}
			if s.GasAlertThreshold() != 600 {
				t.Error("rejected update changed the snapshot")
			}
		})
	}
}

func TestUpdateStoreFailure(t *testing.T) {
	store := newFakeStore(nil)
	store.saveErr = errors.New("read-only")
	s := New(store, testConfig())

	if _, err := s.Update(context.Background(), map[string]string{models.SettingGasAlertThreshold: "700"}); err == nil {
		t.Fatal("expected error")
	}
	if s.GasAlertThreshold() != 600 {
		t.Error("failed save changed the snapshot")
	}
}

func TestUpdatePartialFailureWritesNothing(t *testing.T) {
	store := newFakeStore(nil)
	store.failKey = models.SettingBusStopTimeoutMinutes
	s := New(store, testConfig())

	_, err := s.Update(context.Background(), map[string]string{
		models.SettingGasAlertThreshold:     "900",
		models.SettingBusStopTimeoutMinutes: "10",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if store.batches != 1 {
		t.Errorf("store batches = %d, want 1", store.batches)
	}
	if len(store.rows) != 0 {
		t.Errorf("failed batch left rows %v", store.rows)
	}

	// The next refresh must not pick up half of the update.
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.GasAlertThreshold() != 600 || s.StopTimeout() != 5*time.Minute {
		t.Errorf("snapshot after refresh = %+v", s.Current())
	}
}

func TestServeLoadsImmediately(t *testing.T) {
	store := newFakeStore(map[string]string{models.SettingGasAlertThreshold: "650"})
	s := New(store, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.GasAlertThreshold() != 650 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if s.GasAlertThreshold() != 650 {
		t.Error("Serve did not load settings")
	}
	if s.String() != "settings-refresher" {
		t.Errorf("String() = %q", s.String())
	}
}

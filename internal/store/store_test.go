// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

// setupTestDB opens an in-memory DuckDB store closed at test end.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Driver: DriverDuckDB, Path: ":memory:", QueryTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func sample(id, vehicle string, at time.Time) models.EnrichedSample {
	return models.EnrichedSample{
		ServerID:  id,
		VehicleID: vehicle,
		Latitude:  -6.3646,
		Longitude: 106.8286,
		Speed:     10,
		GasLevel:  250,
		Transport: models.TransportUDP,
		Status:    models.StatusMoving,
		CreatedAt: at,
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New(&config.DatabaseConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := New(&config.DatabaseConfig{Driver: DriverPostgres}); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if db.Driver() != DriverDuckDB {
		t.Errorf("Driver() = %q", db.Driver())
	}
}

func TestSamples_InsertAndLatest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []models.EnrichedSample{
		sample("s1", "BUS-01", base),
		sample("s2", "BUS-02", base.Add(1*time.Second)),
		sample("s3", "BUS-01", base.Add(2*time.Second)),
		sample("s4", "BUS-03", base.Add(3*time.Second)),
	}
	rows[3].Occupancy = "FULL"
	rows[3].Transport = models.TransportHTTP
	for _, r := range rows {
		if err := db.InsertSample(ctx, r); err != nil {
			t.Fatalf("InsertSample(%s) error = %v", r.ServerID, err)
		}
	}

	recent, err := db.RecentSamples(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSamples() error = %v", err)
	}
	if len(recent) != 4 || recent[0].ServerID != "s4" {
		t.Fatalf("RecentSamples() order wrong: %+v", recent)
	}
	if diff := cmp.Diff(rows[3], recent[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	latest, err := db.LatestLocations(ctx, 20)
	if err != nil {
		t.Fatalf("LatestLocations() error = %v", err)
	}
	var got []string
	for _, l := range latest {
		got = append(got, l.ServerID)
	}
	if diff := cmp.Diff([]string{"s4", "s3", "s2"}, got); diff != "" {
		t.Errorf("LatestLocations() ids (-want +got):\n%s", diff)
	}
}

func TestLatestLocations_BoundedWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// BUS-OLD reported first, then BUS-NEW flooded the window.
	if err := db.InsertSample(ctx, sample("old", "BUS-OLD", base)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if err := db.InsertSample(ctx, sample(id, "BUS-NEW", base.Add(time.Duration(i+1)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := db.LatestLocations(ctx, 3)
	if err != nil {
		t.Fatalf("LatestLocations() error = %v", err)
	}
	if len(latest) != 1 || latest[0].VehicleID != "BUS-NEW" {
		t.Errorf("expected only BUS-NEW inside a 3-row window, got %+v", latest)
	}
}

func TestLatestPerVehicle(t *testing.T) {
	in := []models.EnrichedSample{
		{ServerID: "3", VehicleID: "A"},
		{ServerID: "2", VehicleID: "B"},
		{ServerID: "1", VehicleID: "A"},
	}
	got := LatestPerVehicle(in)
	if len(got) != 2 || got[0].ServerID != "3" || got[1].ServerID != "2" {
		t.Errorf("LatestPerVehicle() = %+v", got)
	}
	if out := LatestPerVehicle(nil); len(out) != 0 {
		t.Errorf("LatestPerVehicle(nil) = %+v", out)
	}
}

func TestDeleteSamplesBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, at := range []time.Time{base.Add(-48 * time.Hour), base.Add(-25 * time.Hour), base.Add(-time.Hour), base} {
		if err := db.InsertSample(ctx, sample(string(rune('a'+i)), "BUS-01", at)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.DeleteSamplesBefore(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSamplesBefore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}

	left, err := db.RecentSamples(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Errorf("remaining rows = %d, want 2", len(left))
	}
}

func TestZones_CRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	zones := []models.Zone{
		{ID: "z2", Name: "Halte Teknik", Latitude: -6.3620, Longitude: 106.8230, RadiusM: 40, CreatedAt: base},
		{ID: "z1", Name: "Gerbang Utama", Latitude: -6.3646, Longitude: 106.8286, RadiusM: 60, CreatedAt: base},
		{ID: "z3", Name: "Asrama", Latitude: -6.3500, Longitude: 106.8300, RadiusM: 80, CreatedAt: base.Add(time.Minute)},
	}
	for _, z := range zones {
		if err := db.CreateZone(ctx, z); err != nil {
			t.Fatalf("CreateZone(%s) error = %v", z.ID, err)
		}
	}

	got, err := db.ListZones(ctx)
	if err != nil {
		t.Fatalf("ListZones() error = %v", err)
	}
	want := []models.Zone{zones[1], zones[0], zones[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListZones() order by created_at then id (-want +got):\n%s", diff)
	}

	deleted, err := db.DeleteZone(ctx, "z2")
	if err != nil || !deleted {
		t.Fatalf("DeleteZone(z2) = %v, %v", deleted, err)
	}
	deleted, err = db.DeleteZone(ctx, "z2")
	if err != nil || deleted {
		t.Errorf("second DeleteZone(z2) = %v, %v; want false, nil", deleted, err)
	}

	got, _ = db.ListZones(ctx)
	if len(got) != 2 {
		t.Errorf("zones after delete = %d, want 2", len(got))
	}
}

func TestListZones_EmptyIsNotNil(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.ListZones(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("ListZones() on an empty table should return an empty slice")
	}
}

func TestZoneEvents_InsertAndRecent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	events := []models.ZoneEvent{
		{ID: "e1", VehicleID: "BUS-01", ZoneID: "z1", ZoneName: "Gerbang Utama", EventType: models.ZoneEnter, Timestamp: base},
		{ID: "e2", VehicleID: "BUS-01", ZoneID: "z1", ZoneName: "Gerbang Utama", EventType: models.ZoneExit, Timestamp: base.Add(time.Minute)},
		{ID: "e3", VehicleID: "BUS-01", ZoneID: "z2", ZoneName: "Halte Teknik", EventType: models.ZoneEnter, Timestamp: base.Add(time.Minute)},
	}
	for _, e := range events {
		if err := db.InsertZoneEvent(ctx, e); err != nil {
			t.Fatalf("InsertZoneEvent(%s) error = %v", e.ID, err)
		}
	}

	got, err := db.RecentZoneEvents(ctx, 2)
	if err != nil {
		t.Fatalf("RecentZoneEvents() error = %v", err)
	}
	want := []models.ZoneEvent{events[2], events[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RecentZoneEvents() (-want +got):\n%s", diff)
	}
}

func TestSettings_Upsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertSetting(ctx, models.SettingGasAlertThreshold, "600", base); err != nil {
		t.Fatalf("UpsertSetting() error = %v", err)
	}
	if err := db.UpsertSetting(ctx, models.SettingGasAlertThreshold, "750", base.Add(time.Hour)); err != nil {
		t.Fatalf("UpsertSetting() overwrite error = %v", err)
	}
	if err := db.UpsertSetting(ctx, models.SettingBusStopTimeoutMinutes, "5", base); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListSettings(ctx)
	if err != nil {
		t.Fatalf("ListSettings() error = %v", err)
	}
	want := []models.SettingRow{
		{Key: models.SettingBusStopTimeoutMinutes, Value: "5", UpdatedAt: base},
		{Key: models.SettingGasAlertThreshold, Value: "750", UpdatedAt: base.Add(time.Hour)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListSettings() (-want +got):\n%s", diff)
	}
}

func TestSettings_UpsertBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertSettings(ctx, map[string]string{
		models.SettingGasAlertThreshold:     "800",
		models.SettingBusStopTimeoutMinutes: "7",
		models.SettingMinSpeedThreshold:     "2.5",
	}, base); err != nil {
		t.Fatalf("UpsertSettings() error = %v", err)
	}
	if err := db.UpsertSettings(ctx, nil, base); err != nil {
		t.Fatalf("UpsertSettings(nil) error = %v", err)
	}

	got, err := db.ListSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.SettingRow{
		{Key: models.SettingBusStopTimeoutMinutes, Value: "7", UpdatedAt: base},
		{Key: models.SettingGasAlertThreshold, Value: "800", UpdatedAt: base},
		{Key: models.SettingMinSpeedThreshold, Value: "2.5", UpdatedAt: base},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListSettings() (-want +got):\n%s", diff)
	}
}

func TestSettings_UpsertBatchCanceledWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := db.UpsertSettings(ctx, map[string]string{
		models.SettingGasAlertThreshold:     "800",
		models.SettingBusStopTimeoutMinutes: "7",
	}, base); err == nil {
		t.Fatal("expected error on canceled context")
	}

	got, err := db.ListSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("canceled batch left rows %+v", got)
	}
}

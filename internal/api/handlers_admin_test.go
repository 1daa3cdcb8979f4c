// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/settings"
)

func TestAdminRequiresToken(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"no token", "", http.StatusUnauthorized, ErrCodeUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized, ErrCodeUnauthorized},
		{"wrong role", h.token(t, "viewer"), http.StatusForbidden, ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, h.do(http.MethodGet, "/api/admin/settings", "", tt.token), tt.status, tt.code)
			expectError(t, h.do(http.MethodPost, "/api/admin/geofences", `{"name":"x"}`, tt.token), tt.status, tt.code)
		})
	}
	if len(h.store.created) != 0 {
		t.Error("unauthenticated request created a zone")
	}
}

func TestAdminAuthModeNone(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Security.AuthMode = config.AuthModeNone })
	if rec := h.do(http.MethodGet, "/api/admin/settings", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminSettings(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/admin/settings", "", h.token(t, "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got models.Settings
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.GasAlertThreshold != 600 || got.MinSpeedThreshold != 3 {
		t.Errorf("settings = %+v", got)
	}
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t)
	h.cache.Set(cache.KeyPublicConfig, models.PublicConfig{GasAlertThreshold: 1})

	rec := h.do(http.MethodPut, "/api/admin/settings",
		`{"settings":{"GAS_ALERT_THRESHOLD":700,"BUS_STOP_TIMEOUT_MINUTES":"7.5"}}`, h.token(t, "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	want := map[string]string{"GAS_ALERT_THRESHOLD": "700", "BUS_STOP_TIMEOUT_MINUTES": "7.5"}
	if diff := cmp.Diff(want, h.settings.updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.cache.Get(cache.KeyPublicConfig); ok {
		t.Error("public config still cached after update")
	}
}

func TestUpdateSettingsRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"empty map", `{"settings":{}}`, nil},
		{"missing settings", `{}`, nil},
		{"unknown key", `{"settings":{"FOO":1}}`, fmt.Errorf("%w: FOO", settings.ErrUnknownKey)},
		{"bad value", `{"settings":{"GAS_ALERT_THRESHOLD":-1}}`, fmt.Errorf("GAS_ALERT_THRESHOLD: %w", settings.ErrInvalidValue)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.settings.updateErr = tt.err
			expectError(t, h.do(http.MethodPut, "/api/admin/settings", tt.body, h.token(t, "admin")),
				http.StatusBadRequest, ErrCodeValidationFailed)
		})
	}
}

func TestCreateGeofence(t *testing.T) {
	h := newHarness(t)
	h.cache.Set(cache.KeyGeofences, []models.Zone{})

	rec := h.do(http.MethodPost, "/api/admin/geofences",
		`{"name":"  Campus Gate ","latitude":-6.2001,"longitude":106.8001,"radius":50}`, h.token(t, "admin"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	want := []models.Zone{{
		ID:        "zone-1",
		Name:      "Campus Gate",
		Latitude:  -6.2001,
		Longitude: 106.8001,
		RadiusM:   50,
		CreatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, h.store.created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.cache.Get(cache.KeyGeofences); ok {
		t.Error("geofences still cached after create")
	}
	if h.refresher.count() != 1 {
		t.Errorf("refresh triggered %d times", h.refresher.count())
	}
}

func TestCreateGeofenceInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `{`, ErrCodeBadRequest},
		{"blank name", `{"name":"  ","latitude":1,"longitude":1,"radius":10}`, ErrCodeValidationFailed},
		{"long name", fmt.Sprintf(`{"name":"%0101d","latitude":1,"longitude":1,"radius":10}`, 0), ErrCodeValidationFailed},
		{"missing latitude", `{"name":"A","longitude":1,"radius":10}`, ErrCodeValidationFailed},
		{"zero radius", `{"name":"A","latitude":1,"longitude":1,"radius":0}`, ErrCodeValidationFailed},
		{"huge radius", `{"name":"A","latitude":1,"longitude":1,"radius":100001}`, ErrCodeValidationFailed},
		{"latitude past bound", `{"name":"A","latitude":95,"longitude":1,"radius":10}`, ErrCodeValidationFailed},
		{"longitude past bound", `{"name":"A","latitude":1,"longitude":-181,"radius":10}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			expectError(t, h.do(http.MethodPost, "/api/admin/geofences", tt.body, h.token(t, "admin")),
				http.StatusBadRequest, tt.code)
			if len(h.store.created) != 0 || h.refresher.count() != 0 {
				t.Error("invalid zone reached the store")
			}
		})
	}
}

func TestDeleteGeofence(t *testing.T) {
	h := newHarness(t)
	h.store.zones = []models.Zone{{ID: "z1", Name: "Campus"}}
	tok := h.token(t, "admin")

	if rec := h.do(http.MethodDelete, "/api/admin/geofences/z1", "", tok); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if h.refresher.count() != 1 || len(h.store.deleted) != 1 {
		t.Errorf("refresh = %d deleted = %v", h.refresher.count(), h.store.deleted)
	}

	expectError(t, h.do(http.MethodDelete, "/api/admin/geofences/z1", "", tok), http.StatusNotFound, ErrCodeNotFound)
	if h.refresher.count() != 1 {
		t.Error("missing zone triggered a refresh")
	}
}

func TestAdminMutationsRateLimited(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, "admin")
	body := `{"settings":{"GAS_ALERT_THRESHOLD":700}}`

	for i := 0; i < 2; i++ {
		if rec := h.do(http.MethodPut, "/api/admin/settings", body, tok); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	expectError(t, h.do(http.MethodPut, "/api/admin/settings", body, tok), http.StatusTooManyRequests, ErrCodeTooManyRequests)

	// Reads are not part of the admin budget.
	if rec := h.do(http.MethodGet, "/api/admin/settings", "", tok); rec.Code != http.StatusOK {
		t.Errorf("GET settings status = %d", rec.Code)
	}
}

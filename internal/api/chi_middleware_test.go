// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ReadRequests <= 0 || cfg.ReadWindow <= 0 {
		t.Errorf("read limit = %d/%v", cfg.ReadRequests, cfg.ReadWindow)
	}
	if NewChiMiddleware(nil).config == nil {
		t.Error("nil config not defaulted")
	}
}

func TestReadEndpointsThrottled(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.RateLimit.ReadRequests = 2
		c.RateLimit.ReadWindow = time.Minute
	})
	rejected := metrics.RateLimitRejections.WithLabelValues("read")
	before := testutil.ToFloat64(rejected)

	for i := 0; i < 2; i++ {
		if rec := h.do(http.MethodGet, "/api/bus/locations", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	env := expectError(t, h.do(http.MethodGet, "/api/geofence-events", "", ""), http.StatusTooManyRequests, ErrCodeTooManyRequests)
	if env.Error.Details == nil {
		t.Error("missing retry details")
	}
	if got := testutil.ToFloat64(rejected) - before; got != 1 {
		t.Errorf("rejections delta = %v", got)
	}

	// Unthrottled reads keep working.
	if rec := h.do(http.MethodGet, "/api/geofences", "", ""); rec.Code != http.StatusOK {
		t.Errorf("geofences status = %d", rec.Code)
	}
}

func TestRateLimitReadDisabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{ReadRequests: 1, ReadWindow: time.Minute, Disabled: true})
	handler := m.RateLimitRead()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

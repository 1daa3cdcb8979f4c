// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ifauzeee/BipolTracker/internal/logging"
)

type capturedIDs struct {
	logging     string
	chi         string
	correlation string
}

func serveWithID(t *testing.T, header string) (*httptest.ResponseRecorder, capturedIDs) {
	t.Helper()
	var got capturedIDs
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.logging = logging.RequestIDFromContext(r.Context())
		got.chi = chimiddleware.GetReqID(r.Context())
		got.correlation = logging.CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bus/locations", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestRequestIDGenerates(t *testing.T) {
	rec, got := serveWithID(t, "")

	id := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("response id %q is not a UUID: %v", id, err)
	}
	if got.logging != id || got.chi != id {
		t.Errorf("context ids = %+v, want %s", got, id)
	}
	if got.correlation == "" {
		t.Error("correlation id not set")
	}
}

func TestRequestIDPreservesUpstream(t *testing.T) {
	rec, got := serveWithID(t, "edge-7f3a")
	if rec.Header().Get(RequestIDHeader) != "edge-7f3a" || got.logging != "edge-7f3a" {
		t.Errorf("upstream id not preserved: header=%q ctx=%q", rec.Header().Get(RequestIDHeader), got.logging)
	}
}

func TestRequestIDReplacesUnusable(t *testing.T) {
	for name, header := range map[string]string{
		"too long": strings.Repeat("a", maxRequestIDLength+1),
		"blank":    "   ",
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := serveWithID(t, header)
			if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
				t.Errorf("expected a generated UUID, got %q", rec.Header().Get(RequestIDHeader))
			}
		})
	}
}

func TestRequestIDUniquePerRequest(t *testing.T) {
	a, _ := serveWithID(t, "")
	b, _ := serveWithID(t, "")
	if a.Header().Get(RequestIDHeader) == b.Header().Get(RequestIDHeader) {
		t.Error("two requests shared an id")
	}
}

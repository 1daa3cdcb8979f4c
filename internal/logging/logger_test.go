// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// captureGlobal swaps the global logger for one writing to a buffer and
// restores it when the test finishes. Tests using it must not run in parallel.
func captureGlobal(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("Timestamp = false, want true")
	}
	if cfg.Output == nil {
		t.Error("Output is nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	if !ValidLevel("warn") {
		t.Error("ValidLevel(warn) = false")
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
}

func TestInitWritesJSON(t *testing.T) {
	buf := captureGlobal(t, "info")

	Info().Str("vehicle_id", "BUS-01").Msg("sample accepted")
	Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("missing level field: %s", out)
	}
	if !strings.Contains(out, `"vehicle_id":"BUS-01"`) {
		t.Errorf("missing vehicle_id field: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %s", out)
	}
}

func TestCtxAddsIDs(t *testing.T) {
	buf := captureGlobal(t, "debug")

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"correlation_id":"corr-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestContextIDsAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", got)
	}
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("CorrelationIDFromContext = %q, want empty", got)
	}
	if got := len(GenerateCorrelationID()); got != 8 {
		t.Errorf("correlation id length = %d, want 8", got)
	}
}

func TestSlogHandler(t *testing.T) {
	buf := captureGlobal(t, "debug")

	logger := NewSlogLogger().With("service", "zone-refresher").WithGroup("supervisor")
	logger.Warn("service restarted", slog.Int("failures", 2))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"service":"zone-refresher"`, `"supervisor.failures":2`, "service restarted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestWatermillLogger(t *testing.T) {
	buf := captureGlobal(t, "debug")

	wl := NewWatermillLogger().With(watermill.LogFields{"topic": "fleet.zone_events"})
	wl.Error("publish failed", errors.New("nats down"), watermill.LogFields{"attempt": 1})

	out := buf.String()
	for _, want := range []string{`"component":"watermill"`, `"topic":"fleet.zone_events"`, `"error":"nats down"`, `"attempt":1`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

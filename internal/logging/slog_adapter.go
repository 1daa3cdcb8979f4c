// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler is an slog.Handler that writes through zerolog. The supervisor
// tree logs through sutureslog, which only accepts *slog.Logger.
type SlogHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewSlogHandler wraps the current global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogLogger returns an *slog.Logger backed by the global zerolog logger.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler())
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	zl := slogToZerologLevel(level)
	return zl >= zerolog.GlobalLevel() && zl >= h.logger.GetLevel()
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))
	for _, attr := range h.attrs {
		event = addAttr(event, attr, h.groups)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = addAttr(event, attr, h.groups)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SlogHandler{logger: h.logger, attrs: merged, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &SlogHandler{logger: h.logger, attrs: h.attrs, groups: groups}
}

func addAttr(event *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return event.Str(key, v.String())
	case slog.KindInt64:
		return event.Int64(key, v.Int64())
	case slog.KindUint64:
		return event.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, v.Float64())
	case slog.KindBool:
		return event.Bool(key, v.Bool())
	case slog.KindDuration:
		return event.Dur(key, v.Duration())
	case slog.KindTime:
		return event.Time(key, v.Time())
	case slog.KindGroup:
		nested := append(append([]string{}, groups...), attr.Key)
		for _, ga := range v.Group() {
			event = addAttr(event, ga, nested)
		}
		return event
	default:
		return event.Interface(key, v.Any())
	}
}

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

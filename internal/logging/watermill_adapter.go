// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillLogger adapts zerolog to watermill.LoggerAdapter so publisher
// internals log in the same format as the rest of the process.
type WatermillLogger struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)

// NewWatermillLogger returns an adapter over the global logger tagged with
// component=watermill.
func NewWatermillLogger() *WatermillLogger {
	return &WatermillLogger{logger: WithComponent("watermill")}
}

// Error implements watermill.LoggerAdapter.
func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter.
func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(l.logger.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{logger: l.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	if len(fields) == 0 {
		return e
	}
	return e.Fields(map[string]interface{}(fields))
}

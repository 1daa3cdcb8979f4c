// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package logging wraps zerolog behind a process-wide logger.
//
// Init is called once from main with values from the logging config section.
// Until then a JSON logger at info level writes to stderr, so packages can log
// from init-time code and tests without extra setup.
//
//	logging.Info().Str("vehicle_id", id).Msg("Sample accepted")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Zone refresh failed")
//
// Always terminate event chains with Msg or Send; an unterminated event is
// never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal, panic, disabled.
	Level string

	// Format is json (default) or console.
	Format string

	// Caller adds file:line to each entry.
	Caller bool

	// Timestamp adds the time field. DefaultConfig enables it.
	Timestamp bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // logging must work before Init
func init() {
	initLogger(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger must be called with mu held (or from init).
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"
	zerolog.CallerFieldName = "caller"

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(output)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	log = l
}

// parseLevel maps a level name to zerolog; unknown names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether name is a level parseLevel understands.
func ValidLevel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "off":
		return true
	}
	return false
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Mostly useful in tests.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With starts a child logger context from the global logger.
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Trace starts a trace level event.
func Trace() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Trace()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

// Info starts an info level event.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a warn level event.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts an error level event.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Fatal starts a fatal level event; os.Exit(1) follows Msg.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// Err starts an error level event carrying err.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// WithComponent returns a child logger tagged with a component field.
//
//	log := logging.WithComponent("udp-listener")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// NewTestLogger returns a logger writing JSON lines to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

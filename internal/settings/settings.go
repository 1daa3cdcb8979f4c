// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package settings serves the runtime settings stored in app_settings.
//
// Reads never touch the store: the current snapshot sits behind an atomic
// pointer and is replaced by the periodic refresh or by Update. A failed
// refresh keeps whatever was loaded last, or the configured defaults if
// nothing has loaded yet.
package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

const (
	MaxGasAlertThreshold = 10000
	MaxStopTimeout       = 1440
	MaxMinSpeed          = 500
)

var (
	// ErrUnknownKey is returned by Update for keys the service does not own.
	ErrUnknownKey = errors.New("unknown setting")

	// ErrInvalidValue is returned for values that do not parse or are out of range.
	ErrInvalidValue = errors.New("invalid setting value")
)

// Store is the persistence the service reads and writes through.
type Store interface {
	ListSettings(ctx context.Context) ([]models.SettingRow, error)
	UpsertSettings(ctx context.Context, values map[string]string, at time.Time) error
}

// Service holds the current settings snapshot.
type Service struct {
	store    Store
	defaults models.Settings
	interval time.Duration
	now      func() time.Time

	current atomic.Pointer[models.Settings]
	updMu   sync.Mutex

	listenMu  sync.RWMutex
	listeners []func(models.Settings)
}

// New creates a service seeded with the configured defaults.
func New(store Store, cfg config.SettingsConfig) *Service {
	s := &Service{
		store: store,
		defaults: models.Settings{
			GasAlertThreshold: cfg.GasAlertThreshold,
			StopTimeout:       cfg.StopTimeoutMinutes,
			MinSpeedThreshold: cfg.MinSpeedThreshold,
		},
		interval: cfg.RefreshInterval,
		now:      time.Now,
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	initial := s.defaults
	s.current.Store(&initial)
	return s
}

// OnChange registers fn to run after Update changes the snapshot.
func (s *Service) OnChange(fn func(models.Settings)) {
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

// Current returns the active snapshot.
func (s *Service) Current() models.Settings {
	return *s.current.Load()
}

// GasAlertThreshold is the gas level at or above which a sample alerts.
func (s *Service) GasAlertThreshold() int {
	return s.current.Load().GasAlertThreshold
}

// StopTimeout is how long a vehicle may report zero speed before it is PARKED.
func (s *Service) StopTimeout() time.Duration {
	return time.Duration(s.current.Load().StopTimeout * float64(time.Minute))
}

// MinSpeed is the datagram speed below which a vehicle counts as stationary.
func (s *Service) MinSpeed() float64 {
	return s.current.Load().MinSpeedThreshold
}

// PublicConfig is the subset shown to map clients.
func (s *Service) PublicConfig() models.PublicConfig {
	return Public(s.Current())
}

// Public projects a snapshot onto the public config shape.
func Public(cur models.Settings) models.PublicConfig {
	return models.PublicConfig{
		GasAlertThreshold:     cur.GasAlertThreshold,
		BusStopTimeoutMinutes: cur.StopTimeout,
	}
}

// Refresh reloads from the store. On failure the snapshot is left as is.
func (s *Service) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.store.ListSettings(ctx)
	if err != nil {
		metrics.SettingsRefreshes.WithLabelValues("failure").Inc()
		return fmt.Errorf("load settings: %w", err)
	}

	s.updMu.Lock()
	defer s.updMu.Unlock()

	// Keys absent from the table fall back to defaults; unparseable values
	// keep what we had.
	prev := s.Current()
	next := s.defaults
	for _, row := range rows {
		if err := apply(&next, row.Key, row.Value); err != nil {
			if !errors.Is(err, ErrUnknownKey) {
				logging.Warn().Err(err).Str("key", row.Key).Msg("ignoring invalid stored setting")
				keep(&next, prev, row.Key)
			}
		}
	}
	next.LoadedAt = s.now()
	s.current.Store(&next)

	metrics.SettingsRefreshes.WithLabelValues("success").Inc()
	return nil
}

// Update validates and persists updates in one batch, then swaps the
// snapshot. Nothing is written if any key or value is invalid, and a failed
// batch leaves both the store and the snapshot unchanged.
func (s *Service) Update(ctx context.Context, updates map[string]string) (models.Settings, error) {
	s.updMu.Lock()

	next := s.Current()
	for key, value := range updates {
		if err := apply(&next, key, value); err != nil {
			s.updMu.Unlock()
			return models.Settings{}, err
		}
	}

	at := s.now()
	if err := s.store.UpsertSettings(ctx, updates, at); err != nil {
		s.updMu.Unlock()
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	next.LoadedAt = at
	s.current.Store(&next)
	s.updMu.Unlock()

	logging.Info().Interface("updates", updates).Msg("settings updated")

	s.listenMu.RLock()
	listeners := s.listeners
	s.listenMu.RUnlock()
	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}

// Serve loads immediately and then refreshes on the interval.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("settings refresh failed, keeping last known values")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) String() string {
	return "settings-refresher"
}

func apply(dst *models.Settings, key, value string) error {
	switch key {
	case models.SettingGasAlertThreshold:
		v, err := parseNumber(key, value, 0, MaxGasAlertThreshold, true)
		if err != nil {
			return err
		}
		dst.GasAlertThreshold = int(v)
	case models.SettingBusStopTimeoutMinutes:
		v, err := parseNumber(key, value, 0, MaxStopTimeout, false)
		if err != nil {
			return err
		}
		dst.StopTimeout = v
	case models.SettingMinSpeedThreshold:
		v, err := parseNumber(key, value, 0, MaxMinSpeed, true)
		if err != nil {
			return err
		}
		dst.MinSpeedThreshold = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

func keep(dst *models.Settings, prev models.Settings, key string) {
	switch key {
	case models.SettingGasAlertThreshold:
		dst.GasAlertThreshold = prev.GasAlertThreshold
	case models.SettingBusStopTimeoutMinutes:
		dst.StopTimeout = prev.StopTimeout
	case models.SettingMinSpeedThreshold:
		dst.MinSpeedThreshold = prev.MinSpeedThreshold
	}
}

// parseNumber accepts a finite number within [lo, hi]. When minInclusive is
// false the value must be strictly greater than lo.
func parseNumber(key, value string, lo, hi float64, minInclusive bool) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidValue, key, value)
	}
	if v > hi || v < lo || (!minInclusive && v == lo) {
		return 0, fmt.Errorf("%w: %s: %v out of range", ErrInvalidValue, key, v)
	}
	return v, nil
}

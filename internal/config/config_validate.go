// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minRateLimitMax      = 1
	maxRateLimitMax      = 100000
	minRateLimitWindowMS = 1000
	maxRateLimitWindowMS = int64(time.Hour / time.Millisecond)
	minRetentionHours    = 1
	minJWTSecretLength   = 32
	maxCoordinateBound   = 180
)

// Validate checks the loaded configuration and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateUDP,
		c.validateDatabase,
		c.validateWriter,
		c.validateGeofence,
		c.validateTelemetry,
		c.validateRateLimit,
		c.validateCache,
		c.validateRetention,
		c.validateSettings,
		c.validateNATS,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

func (c *Config) validateServer() error {
	if err := validatePort("HTTP_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Server.Timeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateUDP() error {
	if !c.UDP.Enabled {
		return nil
	}
	if err := validatePort("UDP_PORT", c.UDP.Port); err != nil {
		return err
	}
	if c.UDP.MaxDatagramsPerSecond < 0 {
		return errors.New("udp.max_datagrams_per_second must not be negative")
	}
	if c.UDP.Legacy.Enabled() {
		if err := validatePort("LEGACY_SERVER_PORT", c.UDP.Legacy.Port); err != nil {
			return err
		}
		if c.UDP.Legacy.QueueSize < 1 {
			return errors.New("udp.legacy.queue_size must be at least 1")
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return errors.New("DUCKDB_PATH is required when DB_DRIVER=duckdb")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be duckdb or postgres, got %q", c.Database.Driver)
	}
	if c.Database.QueryTimeout <= 0 {
		return errors.New("DB_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateWriter() error {
	w := c.Writer
	if w.QueueSize < 1 {
		return errors.New("WRITER_QUEUE_SIZE must be at least 1")
	}
	if w.Workers < 1 {
		return errors.New("WRITER_WORKERS must be at least 1")
	}
	if w.MaxAttempts < 1 || w.MaxAttempts > 10 {
		return fmt.Errorf("WRITER_MAX_ATTEMPTS must be between 1 and 10, got %d", w.MaxAttempts)
	}
	if w.RetryDelay <= 0 {
		return errors.New("WRITER_RETRY_DELAY must be positive")
	}
	return nil
}

func (c *Config) validateGeofence() error {
	if c.Geofence.RefreshInterval < time.Second {
		return errors.New("GEOFENCE_REFRESH_INTERVAL must be at least 1s")
	}
	switch c.Geofence.OverlapPolicy {
	case OverlapFirstMatch, OverlapNearestCenter:
		return nil
	default:
		return fmt.Errorf("GEOFENCE_OVERLAP_POLICY must be %s or %s, got %q",
			OverlapFirstMatch, OverlapNearestCenter, c.Geofence.OverlapPolicy)
	}
}

func (c *Config) validateTelemetry() error {
	t := c.Telemetry
	if t.LatitudeBound <= 0 || t.LatitudeBound > maxCoordinateBound {
		return fmt.Errorf("LATITUDE_BOUND must be in (0, %d]", maxCoordinateBound)
	}
	if t.LongitudeBound <= 0 || t.LongitudeBound > maxCoordinateBound {
		return fmt.Errorf("LONGITUDE_BOUND must be in (0, %d]", maxCoordinateBound)
	}
	if t.LatestWindow < 1 {
		return errors.New("LATEST_WINDOW must be at least 1")
	}
	if t.EventsLimit < 1 {
		return errors.New("telemetry.events_limit must be at least 1")
	}
	return nil
}

func validateRateLimitClass(name string, rc RateLimitClass) error {
	if rc.Max < minRateLimitMax || rc.Max > maxRateLimitMax {
		return fmt.Errorf("%s max must be between %d and %d", name, minRateLimitMax, maxRateLimitMax)
	}
	if rc.WindowMS < minRateLimitWindowMS || rc.WindowMS > maxRateLimitWindowMS {
		return fmt.Errorf("%s window_ms must be between %d and %d", name, minRateLimitWindowMS, maxRateLimitWindowMS)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	rl := c.RateLimit
	if rl.Disabled {
		return nil
	}
	if err := validateRateLimitClass("RATE_LIMIT (telemetry)", rl.Telemetry); err != nil {
		return err
	}
	if err := validateRateLimitClass("RATE_LIMIT (admin)", rl.Admin); err != nil {
		return err
	}
	if rl.ReadRequests < 1 || rl.ReadWindow <= 0 {
		return errors.New("ratelimit.read_requests and ratelimit.read_window must be positive")
	}
	switch rl.Backend {
	case "memory":
		if rl.ReapInterval <= 0 {
			return errors.New("ratelimit.reap_interval must be positive")
		}
	case "redis":
		if rl.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", rl.Backend)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTLMS <= 0 {
		return errors.New("CACHE_TTL_MS must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return errors.New("cache.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.Hours < minRetentionHours {
		return fmt.Errorf("DATA_RETENTION_HOURS must be at least %d", minRetentionHours)
	}
	if c.Retention.Interval < time.Minute {
		return errors.New("RETENTION_INTERVAL must be at least 1m")
	}
	return nil
}

func (c *Config) validateSettings() error {
	s := c.Settings
	if s.RefreshInterval < time.Second {
		return errors.New("SETTINGS_REFRESH_INTERVAL must be at least 1s")
	}
	if s.GasAlertThreshold < 0 || s.GasAlertThreshold > 10000 {
		return errors.New("GAS_ALERT_THRESHOLD must be between 0 and 10000")
	}
	if s.StopTimeoutMinutes <= 0 {
		return errors.New("BUS_STOP_TIMEOUT_MINUTES must be positive")
	}
	if s.MinSpeedThreshold < 0 || s.MinSpeedThreshold > 500 {
		return errors.New("UDP_MIN_SPEED_THRESHOLD must be between 0 and 500")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.NATS.PublishBuffer < 1 {
		return errors.New("nats.publish_buffer must be at least 1")
	}
	if c.NATS.ZoneEventsTopic == "" {
		return errors.New("nats.zone_events_topic is required")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case AuthModeNone:
		return nil
	case AuthModeJWT:
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
		return nil
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or none, got %q", c.Security.AuthMode)
	}
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package config loads BipolTracker configuration.
//
// Values are layered with koanf: struct defaults, then an optional YAML file
// (CONFIG_PATH or one of DefaultConfigPaths), then environment variables.
// Environment names are mapped explicitly in envTransformFunc; anything not
// in that table is ignored.
//
// Config is immutable after Load and safe for concurrent reads. Values that
// operators change at runtime (gas threshold, stop timeout, speed threshold)
// live in the store and are served by the settings package; the values here
// are only their defaults.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	UDP       UDPConfig       `koanf:"udp"`
	Database  DatabaseConfig  `koanf:"database"`
	Writer    WriterConfig    `koanf:"writer"`
	Geofence  GeofenceConfig  `koanf:"geofence"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Cache     CacheConfig     `koanf:"cache"`
	Retention RetentionConfig `koanf:"retention"`
	Settings  SettingsConfig  `koanf:"settings"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// UDPConfig configures the datagram listener.
type UDPConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	ReadBufferBytes int    `koanf:"read_buffer_bytes"`

	// MaxDatagramsPerSecond caps accepted datagrams across all senders.
	// Zero disables the guard.
	MaxDatagramsPerSecond float64 `koanf:"max_datagrams_per_second"`
	Burst                 int     `koanf:"burst"`

	Legacy LegacyConfig `koanf:"legacy"`
}

// LegacyConfig configures forwarding of remapped frames to the old tracker
// listener. Forwarding is off while Host is empty.
type LegacyConfig struct {
	Host        string            `koanf:"host"`
	Port        int               `koanf:"port"`
	QueueSize   int               `koanf:"queue_size"`
	LogInterval time.Duration     `koanf:"log_interval"`
	IDMap       map[string]string `koanf:"id_map"`
}

// Enabled reports whether legacy forwarding is configured.
func (l LegacyConfig) Enabled() bool {
	return l.Host != ""
}

// DatabaseConfig selects and tunes the SQL store.
type DatabaseConfig struct {
	// Driver is duckdb (embedded) or postgres.
	Driver string `koanf:"driver"`

	// Path is the DuckDB file, or ":memory:". Used when Driver is duckdb.
	Path string `koanf:"path"`

	// DSN is the postgres connection string. Used when Driver is postgres.
	DSN string `koanf:"dsn"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// WriterConfig tunes the asynchronous store writer.
type WriterConfig struct {
	QueueSize       int           `koanf:"queue_size"`
	Workers         int           `koanf:"workers"`
	MaxAttempts     int           `koanf:"max_attempts"`
	RetryDelay      time.Duration `koanf:"retry_delay"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// Overlap policies for zones whose circles intersect.
const (
	OverlapFirstMatch    = "first_match"
	OverlapNearestCenter = "nearest_center"
)

// GeofenceConfig configures zone loading and matching.
type GeofenceConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	OverlapPolicy   string        `koanf:"overlap_policy"`
}

// TelemetryConfig holds normalizer bounds and read-side window sizes.
type TelemetryConfig struct {
	// LatitudeBound and LongitudeBound are symmetric absolute limits.
	// Both default to 180 so existing trackers keep working; set
	// LatitudeBound to 90 to reject impossible latitudes.
	LatitudeBound  float64 `koanf:"latitude_bound"`
	LongitudeBound float64 `koanf:"longitude_bound"`

	// LatestWindow is how many recent rows the latest-locations query reads
	// before keeping one row per vehicle.
	LatestWindow int `koanf:"latest_window"`

	// EventsLimit is the default size of the zone event history query.
	EventsLimit int `koanf:"events_limit"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	Disabled     bool          `koanf:"disabled"`
	Backend      string        `koanf:"backend"`
	ReapInterval time.Duration `koanf:"reap_interval"`

	Telemetry RateLimitClass `koanf:"telemetry"`
	Admin     RateLimitClass `koanf:"admin"`

	// Read throttles query endpoints with a sliding window by client IP.
	ReadRequests int           `koanf:"read_requests"`
	ReadWindow   time.Duration `koanf:"read_window"`

	Redis RedisConfig `koanf:"redis"`
}

// RateLimitClass is the fixed-window budget of one endpoint class.
type RateLimitClass struct {
	Max      int   `koanf:"max"`
	WindowMS int64 `koanf:"window_ms"`
}

// Window returns WindowMS as a duration.
func (c RateLimitClass) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}

// RedisConfig is used when RateLimitConfig.Backend is redis.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	TTLMS         int64         `koanf:"ttl_ms"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// TTL returns TTLMS as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMS) * time.Millisecond
}

// RetentionConfig configures the sample reaper.
type RetentionConfig struct {
	Hours    int           `koanf:"hours"`
	Interval time.Duration `koanf:"interval"`
}

// Window returns the retention window as a duration.
func (c RetentionConfig) Window() time.Duration {
	return time.Duration(c.Hours) * time.Hour
}

// SettingsConfig holds defaults for store-owned runtime settings and the
// refresh cadence.
type SettingsConfig struct {
	RefreshInterval    time.Duration `koanf:"refresh_interval"`
	GasAlertThreshold  int           `koanf:"gas_alert_threshold"`
	StopTimeoutMinutes float64       `koanf:"stop_timeout_minutes"`
	MinSpeedThreshold  float64       `koanf:"min_speed_threshold"`
}

// WebSocketConfig configures the broadcast hub.
type WebSocketConfig struct {
	BroadcastBuffer int `koanf:"broadcast_buffer"`
	ClientBuffer    int `koanf:"client_buffer"`
}

// NATSConfig configures the optional event bus publisher.
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	JetStream        bool          `koanf:"jetstream"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	PublishBuffer    int           `koanf:"publish_buffer"`
	ZoneEventsTopic  string        `koanf:"zone_events_topic"`
	TelemetryTopic   string        `koanf:"telemetry_topic"`
	PublishTelemetry bool          `koanf:"publish_telemetry"`
}

// Auth modes for admin endpoints.
const (
	AuthModeJWT  = "jwt"
	AuthModeNone = "none"
)

// SecurityConfig configures admin authentication and CORS.
type SecurityConfig struct {
	AuthMode    string   `koanf:"auth_mode"`
	JWTSecret   string   `koanf:"jwt_secret"`
	JWTIssuer   string   `koanf:"jwt_issuer"`
	AdminRole   string   `koanf:"admin_role"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

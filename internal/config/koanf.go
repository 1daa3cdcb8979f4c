// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bipoltracker/config.yaml",
	"/etc/bipoltracker/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultLegacyIDMap translates plate-style ids to the ids the legacy
// tracker expects.
func DefaultLegacyIDMap() map[string]string {
	return map[string]string{
		"B 2013 EPA": "BT-240601",
		"B 2027 EPA": "BT-240602",
		"BPL-BIPOL":  "BT-240603",
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		UDP: UDPConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            3333,
			ReadBufferBytes: 1 << 20,
			Legacy: LegacyConfig{
				Port:        5005,
				QueueSize:   1000,
				LogInterval: time.Minute,
				IDMap:       DefaultLegacyIDMap(),
			},
		},
		Database: DatabaseConfig{
			Driver:          "duckdb",
			Path:            "/data/bipoltracker.duckdb",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    10 * time.Second,
		},
		Writer: WriterConfig{
			QueueSize:       1024,
			Workers:         4,
			MaxAttempts:     3,
			RetryDelay:      200 * time.Millisecond,
			DrainTimeout:    5 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Geofence: GeofenceConfig{
			RefreshInterval: 30 * time.Second,
			OverlapPolicy:   OverlapFirstMatch,
		},
		Telemetry: TelemetryConfig{
			LatitudeBound:  180,
			LongitudeBound: 180,
			LatestWindow:   20,
			EventsLimit:    50,
		},
		RateLimit: RateLimitConfig{
			Backend:      "memory",
			ReapInterval: 5 * time.Minute,
			Telemetry:    RateLimitClass{Max: 100, WindowMS: 60000},
			Admin:        RateLimitClass{Max: 10, WindowMS: 60000},
			ReadRequests: 300,
			ReadWindow:   time.Minute,
			Redis: RedisConfig{
				Addr:      "",
				KeyPrefix: "bipol:ratelimit:",
			},
		},
		Cache: CacheConfig{
			TTLMS:         5000,
			SweepInterval: time.Minute,
		},
		Retention: RetentionConfig{
			Hours:    24,
			Interval: time.Hour,
		},
		Settings: SettingsConfig{
			RefreshInterval:    60 * time.Second,
			GasAlertThreshold:  600,
			StopTimeoutMinutes: 5,
			MinSpeedThreshold:  3.0,
		},
		WebSocket: WebSocketConfig{
			BroadcastBuffer: 256,
			ClientBuffer:    256,
		},
		NATS: NATSConfig{
			Enabled:         false,
			URL:             "nats://127.0.0.1:4222",
			JetStream:       true,
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
			PublishBuffer:   1024,
			ZoneEventsTopic: "fleet.zone_events",
			TelemetryTopic:  "fleet.telemetry",
		},
		Security: SecurityConfig{
			AuthMode:    AuthModeJWT,
			AdminRole:   "admin",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load is the entry point used by main.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf layers defaults, the optional YAML file, and environment
// variables (highest priority), then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
// The first block keeps the names the tracker firmware deployment already uses.
var envMappings = map[string]string{
	"udp_port":                 "udp.port",
	"legacy_server_host":       "udp.legacy.host",
	"legacy_server_port":       "udp.legacy.port",
	"rate_limit_window_ms":     "ratelimit.telemetry.window_ms",
	"rate_limit_max":           "ratelimit.telemetry.max",
	"cache_ttl_ms":             "cache.ttl_ms",
	"data_retention_hours":     "retention.hours",
	"udp_min_speed_threshold":  "settings.min_speed_threshold",
	"bus_stop_timeout_minutes": "settings.stop_timeout_minutes",
	"gas_alert_threshold":      "settings.gas_alert_threshold",

	// Server
	"http_port":        "server.port",
	"port":             "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// UDP
	"udp_enabled":           "udp.enabled",
	"udp_host":              "udp.host",
	"udp_read_buffer_bytes": "udp.read_buffer_bytes",
	"udp_max_datagrams_sec": "udp.max_datagrams_per_second",
	"udp_burst":             "udp.burst",

	// Database
	"db_driver":            "database.driver",
	"duckdb_path":          "database.path",
	"db_dsn":               "database.dsn",
	"database_url":         "database.dsn",
	"db_max_open_conns":    "database.max_open_conns",
	"db_max_idle_conns":    "database.max_idle_conns",
	"db_conn_max_lifetime": "database.conn_max_lifetime",
	"db_query_timeout":     "database.query_timeout",

	// Writer
	"writer_queue_size":    "writer.queue_size",
	"writer_workers":       "writer.workers",
	"writer_max_attempts":  "writer.max_attempts",
	"writer_retry_delay":   "writer.retry_delay",
	"writer_drain_timeout": "writer.drain_timeout",

	// Geofence and telemetry
	"geofence_refresh_interval": "geofence.refresh_interval",
	"geofence_overlap_policy":   "geofence.overlap_policy",
	"latitude_bound":            "telemetry.latitude_bound",
	"longitude_bound":           "telemetry.longitude_bound",
	"latest_window":             "telemetry.latest_window",

	// Rate limiting
	"disable_rate_limit":         "ratelimit.disabled",
	"rate_limit_backend":         "ratelimit.backend",
	"rate_limit_admin_max":       "ratelimit.admin.max",
	"rate_limit_admin_window_ms": "ratelimit.admin.window_ms",
	"rate_limit_read_requests":   "ratelimit.read_requests",
	"redis_addr":                 "ratelimit.redis.addr",
	"redis_password":             "ratelimit.redis.password",
	"redis_db":                   "ratelimit.redis.db",

	// Retention and settings
	"retention_interval":        "retention.interval",
	"settings_refresh_interval": "settings.refresh_interval",

	// NATS
	"nats_enabled":           "nats.enabled",
	"nats_url":               "nats.url",
	"nats_jetstream":         "nats.jetstream",
	"nats_publish_telemetry": "nats.publish_telemetry",

	// Security
	"auth_mode":    "security.auth_mode",
	"jwt_secret":   "security.jwt_secret",
	"jwt_issuer":   "security.jwt_issuer",
	"cors_origins": "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for unmapped variables so unrelated
// environment does not leak into the config tree.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

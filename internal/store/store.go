// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package store is the SQL adapter for the persistent store: telemetry rows,
// zones, zone events, and runtime settings. DuckDB is the embedded default;
// postgres is supported for shared deployments. All SQL is portable between
// the two and uses $N placeholders.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"

	defaultQueryTimeout = 5 * time.Second
)

// DB wraps the SQL connection pool and provides data access methods.
type DB struct {
	conn         *sql.DB
	driver       string
	queryTimeout time.Duration
}

// New opens the configured driver, tunes the pool, and creates the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	db := &DB{
		conn:         conn,
		driver:       driver,
		queryTimeout: cfg.QueryTimeout,
	}
	if db.queryTimeout <= 0 {
		db.queryTimeout = defaultQueryTimeout
	}
	db.configureConnectionPool(cfg)

	ctx, cancel := schemaContext()
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if err := db.createTables(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("driver", driver).Msg("store opened")
	return db, nil
}

func dataSource(cfg *config.DatabaseConfig) (driver, dsn string, err error) {
	switch cfg.Driver {
	case DriverDuckDB, "":
		if cfg.Path == "" || cfg.Path == ":memory:" {
			return DriverDuckDB, "", nil
		}
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return "", "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		return DriverDuckDB, cfg.Path, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return "", "", fmt.Errorf("postgres driver requires a DSN")
		}
		return DriverPostgres, cfg.DSN, nil
	default:
		return "", "", fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// configureConnectionPool applies pool limits from config.
func (db *DB) configureConnectionPool(cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 2
	}
	db.conn.SetMaxIdleConns(idle)
	if cfg.ConnMaxLifetime > 0 {
		db.conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// Driver returns the SQL driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the store is reachable. Used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.queryTimeout)
}

// observe records one synchronous query. Call it deferred with a pointer to
// the named error result.
func observe(operation string, start time.Time, err *error) {
	metrics.RecordStoreQuery(operation, time.Since(start), *err)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Msg("close failed")
	}
}

// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultPostgresImage    = "postgres:16-alpine"
	DefaultPostgresPort     = "5432"
	DefaultPostgresUser     = "bipol"
	DefaultPostgresPassword = "bipol-test"
	DefaultPostgresDB       = "bipoltracker"
)

// PostgresContainer is a running postgres for store integration tests.
type PostgresContainer struct {
	testcontainers.Container
	DSN string
}

// PostgresOption configures the postgres container.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	image        string
	startTimeout time.Duration
}

// WithPostgresImage sets a custom postgres image.
func WithPostgresImage(image string) PostgresOption {
	return func(c *postgresConfig) {
		c.image = image
	}
}

// WithPostgresStartTimeout sets how long to wait for postgres to accept connections.
func WithPostgresStartTimeout(timeout time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		c.startTimeout = timeout
	}
}

// NewPostgresContainer starts postgres and returns a lib/pq DSN for it.
func NewPostgresContainer(ctx context.Context, opts ...PostgresOption) (*PostgresContainer, error) {
	cfg := &postgresConfig{
		image:        DefaultPostgresImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultPostgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     DefaultPostgresUser,
			"POSTGRES_PASSWORD": DefaultPostgresPassword,
			"POSTGRES_DB":       DefaultPostgresDB,
		},
		// postgres logs the ready line twice: once for the init server, once for the real one.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(DefaultPostgresPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultPostgresPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			DefaultPostgresUser, DefaultPostgresPassword, host, port.Port(), DefaultPostgresDB),
	}, nil
}

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
	DefaultRedisImage = "redis:7-alpine"
	DefaultRedisPort  = "6379"
)

// RedisContainer is a running redis for distributed rate limiter tests.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// NewRedisContainer starts redis and returns its host:port address.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultRedisImage,
		ExposedPorts: []string{DefaultRedisPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort(DefaultRedisPort+"/tcp"),
		).WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultRedisPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
	}, nil
}

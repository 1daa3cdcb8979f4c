// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

//go:build integration

package testinfra

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIfNoDocker skips the test when no Docker daemon answers.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if !IsDockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}
}

// IsDockerAvailable reports whether `docker info` succeeds within 5s.
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// CleanupContainer terminates a container, logging rather than failing.
func CleanupContainer(t *testing.T, ctx context.Context, container testcontainers.Container) {
	t.Helper()

	if container == nil {
		return
	}
	if err := container.Terminate(ctx); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}

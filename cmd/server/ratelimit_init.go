// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/ratelimit"
	"github.com/ifauzeee/BipolTracker/internal/supervisor"
)

// initRateLimiter builds the fixed-window limiter on the configured backend.
// The memory store's reaper joins the data layer; redis expires keys itself.
// The returned func releases backend resources.
func initRateLimiter(cfg *config.Config, tree *supervisor.SupervisorTree) (*ratelimit.Limiter, func(), error) {
	noop := func() {}
	if cfg.RateLimit.Disabled {
		return nil, noop, nil
	}

	switch cfg.RateLimit.Backend {
	case "redis":
		rc := cfg.RateLimit.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so an unreachable redis does not block startup.
			logging.Warn().Err(err).Str("addr", rc.Addr).Msg("Redis unreachable, rate limiter will fail open until it recovers")
		}

		logging.Info().Str("addr", rc.Addr).Str("prefix", rc.KeyPrefix).Msg("Rate limiter using redis backend")
		closeFn := func() {
			if err := client.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing redis client")
			}
		}
		return ratelimit.New(ratelimit.NewRedisStore(client, rc.KeyPrefix)), closeFn, nil

	case "memory", "":
		mem := ratelimit.NewMemoryStore(cfg.RateLimit.ReapInterval)
		tree.AddDataService(mem)
		return ratelimit.New(mem), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
}

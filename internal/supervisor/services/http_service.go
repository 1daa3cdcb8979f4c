// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under suture. On cancellation it
// stops accepting connections and gives in-flight requests up to the
// shutdown timeout to finish.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. addr is only used in log lines.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logging.Info().Str("address", h.addr).Msg("HTTP server started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The serve context is already canceled; shutdown gets its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Str("address", h.addr).Msg("HTTP server stopped")
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}

// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

var (
	errMissingToken = errors.New("missing bearer token")
	errBadHeader    = errors.New("invalid authorization header")
)

// DenyFunc writes a 401 or 403 response.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// Middleware guards admin routes.
type Middleware struct {
	jwt       *JWTManager
	authMode  string
	adminRole string
	deny      DenyFunc
}

// NewMiddleware builds the guard. jwtManager may be nil only when authMode
// is none.
func NewMiddleware(jwtManager *JWTManager, cfg config.SecurityConfig, deny DenyFunc) *Middleware {
	role := cfg.AdminRole
	if role == "" {
		role = "admin"
	}
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{
		jwt:       jwtManager,
		authMode:  cfg.AuthMode,
		adminRole: role,
		deny:      deny,
	}
}

// RequireAdmin admits requests carrying a valid token with the admin role.
// With auth mode none every request is admitted; that mode is meant for
// deployments where a gateway in front already authenticates operators.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == config.AuthModeNone {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			m.deny(w, r, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("admin token rejected")
			m.deny(w, r, http.StatusUnauthorized, "Unauthorized: invalid token")
			return
		}

		if claims.Role != m.adminRole {
			logging.Ctx(r.Context()).Warn().
				Str("subject", claims.Subject).
				Str("role", claims.Role).
				Msg("admin access denied")
			m.deny(w, r, http.StatusForbidden, "Forbidden: insufficient permissions")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims RequireAdmin stored, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return c, ok
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errBadHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package auth verifies the bearer tokens that gate admin endpoints.
//
// Tokens are issued by the operator login service, not by this process; the
// two share an HS256 secret. A token carries the operator name as the
// subject and a role claim, and admin routes require the configured admin
// role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ifauzeee/BipolTracker/internal/config"
)

// Claims are the claims of an operator token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 tokens.
type JWTManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTManager returns a manager for cfg's secret and issuer. An empty
// issuer disables the issuer check.
func NewJWTManager(cfg config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		now:    time.Now,
	}, nil
}

// GenerateToken signs a token for subject with role, valid for ttl. The
// server never calls it on a request path; it exists for tooling and tests.
func (m *JWTManager) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, expiry and issuer and returns
// the claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

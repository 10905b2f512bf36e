// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package token issues and verifies the signed, self-contained credentials
// used by the editor API. Tokens are HS256 JWTs: validity is fully determined
// by signature and expiry, never by server-side session state, so any
// stateless request handler can verify independently. The tradeoff is that
// revocation before natural expiry requires rotating the signing secret.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the credential lifetime when the caller does not override it.
const DefaultTTL = 24 * time.Hour

var (
	// ErrMalformedToken means the credential does not parse as a JWT.
	ErrMalformedToken = errors.New("token: malformed token")
	// ErrInvalidSignature means the MAC does not verify under the given secret.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpiredToken means the credential parsed and verified but has expired.
	ErrExpiredToken = errors.New("token: expired token")
)

// Claims is the payload embedded in every issued credential.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue produces a signed credential for the given subject identity.
func Issue(email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a credential, returning its claims.
// Failure modes map onto the package sentinels so callers can distinguish
// a garbage token from a forged or stale one.
func Verify(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	default:
		return nil, fmt.Errorf("parsing token: %w", err)
	}
}

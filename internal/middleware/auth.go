// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication, CORS,
// timeouts and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olegiv/staticlift/internal/token"
)

// ContextKey is a typed key for request context values.
type ContextKey string

// ContextKeyIdentity is the context key for the authenticated identity.
const ContextKeyIdentity ContextKey = "identity"

type errorResponse struct {
	Error string `json:"error"`
}

// WriteError writes the API error envelope.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// Identity returns the authenticated identity from the request context, or ""
// outside an authenticated route.
func Identity(r *http.Request) string {
	identity, _ := r.Context().Value(ContextKeyIdentity).(string)
	return identity
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAdmin creates middleware that authenticates the bearer credential and
// checks the identity against the administrator allow-list. The identity is
// placed in the request context for handlers.
func RequireAdmin(secret string, isAdmin func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				WriteError(w, http.StatusUnauthorized, "Non autorisé")
				return
			}

			claims, err := token.Verify(raw, secret)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Token invalide ou expiré")
				return
			}

			if !isAdmin(claims.Email) {
				WriteError(w, http.StatusForbidden, "Accès interdit")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

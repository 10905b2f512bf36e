// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/staticlift/internal/auth"
	"github.com/olegiv/staticlift/internal/config"
	"github.com/olegiv/staticlift/internal/token"
)

// maxAuthBodySize bounds credential request bodies.
const maxAuthBodySize = 4 << 10

// AuthHandler serves login and password hash generation.
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (*credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBodySize)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Requête invalide")
		return nil, false
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "Email et mot de passe requis")
		return nil, false
	}
	return &req, true
}

// Login exchanges an email and password for a signed credential. Unknown
// identities, wrong passwords and non-administrators all yield the same
// response, so the allow-list cannot be probed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	storedHash := h.cfg.PasswordHashFor(req.Email)
	if storedHash == "" || !auth.CheckPassword(req.Email, req.Password, storedHash) || !h.cfg.IsAdmin(req.Email) {
		slog.Warn("login rejected", "email", auth.NormalizeEmail(req.Email))
		writeJSONError(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}

	identity := auth.NormalizeEmail(req.Email)
	ttl := time.Duration(h.cfg.TokenTTL) * time.Second
	signed, err := token.Issue(identity, h.cfg.JWTSecret, ttl)
	if err != nil {
		slog.Error("issuing token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	slog.Info("login succeeded", "email", identity)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"email":     identity,
		"expiresIn": int(ttl.Seconds()),
	})
}

// Hash derives the password hash for an identity so an operator can place it
// in the environment. The endpoint reveals nothing about configured accounts;
// it is a pure function of its inputs.
func (h *AuthHandler) Hash(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":      auth.NormalizeEmail(req.Email),
		"hash":       auth.HashPassword(req.Email, req.Password),
		"secretName": auth.SecretName(req.Email),
	})
}

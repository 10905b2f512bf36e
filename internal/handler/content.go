// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/staticlift/internal/content"
	"github.com/olegiv/staticlift/internal/middleware"
)

// maxContentBodySize bounds a content record payload.
const maxContentBodySize = 1 << 20

// ContentHandler serves the page catalog and versioned content records.
// Page ids contain slashes, so content routes are registered as wildcards
// and dispatched on the trailing path segment here.
type ContentHandler struct {
	svc *content.Service
}

// NewContentHandler creates a content handler.
func NewContentHandler(svc *content.Service) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// ListPages responds with every managed page and its modification metadata.
func (h *ContentHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.ListPages(r.Context())
	if err != nil {
		slog.Error("listing pages", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

// Get serves GET /api/content/{page} and GET /api/content/{page}/history.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")

	if pageID, ok := strings.CutSuffix(rest, "/history"); ok {
		h.history(w, r, pageID)
		return
	}
	h.getContent(w, r, rest)
}

// getContent is deliberately lax about page ids: reads of anything outside
// the catalog just come back empty, only writes are validated.
func (h *ContentHandler) getContent(w http.ResponseWriter, r *http.Request, pageID string) {
	record, err := h.svc.GetContent(r.Context(), pageID)
	if err != nil {
		slog.Error("reading content", "page", pageID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pageId":  pageID,
		"content": record,
	})
}

func (h *ContentHandler) history(w http.ResponseWriter, r *http.Request, pageID string) {
	versions, err := h.svc.GetHistory(r.Context(), pageID)
	if err != nil {
		slog.Error("listing history", "page", pageID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pageId":   pageID,
		"versions": versions,
	})
}

// Put serves PUT /api/content/{page}: a wholesale record replacement. The
// body wraps the record in a "content" field so future metadata can travel
// alongside it.
func (h *ContentHandler) Put(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "*")

	if !h.svc.KnownPage(pageID) {
		writeJSONError(w, http.StatusBadRequest, "Page inconnue: "+pageID)
		return
	}

	var req struct {
		Content map[string]string `json:"content"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContentBodySize)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "JSON invalide")
		return
	}
	if req.Content == nil {
		writeJSONError(w, http.StatusBadRequest, `Le champ "content" est requis et doit être un objet`)
		return
	}

	identity := middleware.Identity(r)
	err := h.svc.PutContent(r.Context(), pageID, req.Content, identity)
	switch {
	case errors.Is(err, content.ErrUnknownPage):
		writeJSONError(w, http.StatusBadRequest, "Page inconnue: "+pageID)
		return
	case err != nil:
		slog.Error("saving content", "page", pageID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	slog.Info("content saved", "page", pageID, "by", identity)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pageId":  pageID,
	})
}

// Restore serves POST /api/content/{page}/restore/{timestamp}.
func (h *ContentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")

	// POST only means restore here; any other shape has no POST handler
	pageID, tsPart, ok := cutLast(rest, "/restore/")
	if !ok {
		writeJSONError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
		return
	}
	timestamp, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Horodatage invalide")
		return
	}

	identity := middleware.Identity(r)
	err = h.svc.RestoreVersion(r.Context(), pageID, timestamp, identity)
	switch {
	case errors.Is(err, content.ErrVersionNotFound):
		writeJSONError(w, http.StatusNotFound, "Version introuvable")
		return
	case err != nil:
		slog.Error("restoring content", "page", pageID, "timestamp", timestamp, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	slog.Info("content restored", "page", pageID, "timestamp", timestamp, "by", identity)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"pageId":       pageID,
		"restoredFrom": timestamp,
	})
}

// cutLast splits s around the last occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

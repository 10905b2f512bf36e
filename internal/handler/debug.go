// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/staticlift/internal/ssr"
)

// DebugHandler exposes the injection pipeline's view of a page, so an editor
// seeing stale output can tell stored-content problems from caching ones.
type DebugHandler struct {
	injector *ssr.Injector
}

// NewDebugHandler creates a debug handler.
func NewDebugHandler(injector *ssr.Injector) *DebugHandler {
	return &DebugHandler{injector: injector}
}

// SSR serves GET /api/debug/ssr?page=contact (or ?path=/contact.html): the
// derived page id and the merged content record injection would apply.
func (h *DebugHandler) SSR(w http.ResponseWriter, r *http.Request) {
	requestPath := r.URL.Query().Get("path")
	if requestPath == "" {
		requestPath = "/" + r.URL.Query().Get("page")
	}
	pageID := ssr.PageIDFromPath(requestPath)

	merged, err := h.injector.MergedContent(r.Context(), pageID)
	if err != nil {
		slog.Error("merging content for debug", "page", pageID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    requestPath,
		"pageId":  pageID,
		"fields":  len(merged),
		"content": merged,
	})
}

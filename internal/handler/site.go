// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/olegiv/staticlift/internal/ssr"
)

// SiteHandler serves the static multi-page site, piping HTML pages through
// content injection. It is mounted as the router's catch-all, after the API
// and media routes.
type SiteHandler struct {
	siteDir  string
	injector *ssr.Injector
}

// NewSiteHandler creates a site handler over the given directory.
func NewSiteHandler(siteDir string, injector *ssr.Injector) *SiteHandler {
	return &SiteHandler{siteDir: siteDir, injector: injector}
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
		return
	}

	cleaned := path.Clean("/" + r.URL.Path)
	if strings.Contains(cleaned, "..") {
		http.NotFound(w, r)
		return
	}

	file, ok := h.resolve(cleaned)
	if !ok {
		// The editing overlay is a single-page app: unknown /admin paths
		// fall back to its entry point
		if strings.HasPrefix(cleaned, "/admin") {
			index := filepath.Join(h.siteDir, "admin", "index.html")
			if info, err := os.Stat(index); err == nil && !info.IsDir() {
				http.ServeFile(w, r, index)
				return
			}
		}
		http.NotFound(w, r)
		return
	}

	// The editing overlay under /admin is a plain SPA; everything else that
	// resolves to HTML gets stored content injected
	if strings.HasSuffix(file, ".html") && !strings.HasPrefix(cleaned, "/admin") {
		h.serveHTML(w, r, cleaned, file)
		return
	}

	http.ServeFile(w, r, file)
}

// resolve maps a request path onto a file inside the site directory, trying
// the path itself, then with ".html" appended, then as a directory index.
func (h *SiteHandler) resolve(cleaned string) (string, bool) {
	base := filepath.Join(h.siteDir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))

	if info, err := os.Stat(base); err == nil {
		if !info.IsDir() {
			return base, true
		}
		index := filepath.Join(base, "index.html")
		if fi, err := os.Stat(index); err == nil && !fi.IsDir() {
			return index, true
		}
		return "", false
	}

	if path.Ext(cleaned) == "" {
		withExt := base + ".html"
		if info, err := os.Stat(withExt); err == nil && !info.IsDir() {
			return withExt, true
		}
	}
	return "", false
}

// serveHTML injects stored content into a page. Injection failure is never
// fatal for visitors: the static original is served with a diagnostic header.
func (h *SiteHandler) serveHTML(w http.ResponseWriter, r *http.Request, cleaned, file string) {
	page, err := os.ReadFile(file)
	if err != nil {
		slog.Error("reading page", "file", file, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	pageID := ssr.PageIDFromPath(cleaned)
	out, modified, err := h.injector.Inject(r.Context(), pageID, page)
	if err != nil {
		slog.Error("injecting content", "page", pageID, "error", err)
		w.Header().Set("X-CMS-Error", "injection-failed")
		out, modified = page, false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if modified {
		// Injected pages must never be cached stale
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		w.Header().Set("X-CMS-Injected", "true")
	}
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(out)
}

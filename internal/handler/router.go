// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/staticlift/internal/config"
	"github.com/olegiv/staticlift/internal/content"
	"github.com/olegiv/staticlift/internal/images"
	"github.com/olegiv/staticlift/internal/middleware"
	"github.com/olegiv/staticlift/internal/ssr"
	"github.com/olegiv/staticlift/internal/store"
)

const apiTimeout = 30 * time.Second

// authRateLimit throttles the unauthenticated credential endpoints per IP.
// PBKDF2 at 100k iterations makes each guess expensive server-side too.
const (
	authRateLimit = 0.5
	authBurst     = 5
)

// NewRouter assembles the full HTTP surface.
func NewRouter(cfg *config.Config, kv *store.KV, contentSvc *content.Service, imagesSvc *images.Service, injector *ssr.Injector) http.Handler {
	authHandler := NewAuthHandler(cfg)
	contentHandler := NewContentHandler(contentSvc)
	imagesHandler := NewImagesHandler(imagesSvc)
	rssHandler := NewRSSHandler(cfg.RSSFeeds)
	debugHandler := NewDebugHandler(injector)
	healthHandler := NewHealthHandler(kv)
	siteHandler := NewSiteHandler(cfg.SiteDir, injector)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	r.Get("/health", healthHandler.Health)
	r.Get("/cms-images/{key}", imagesHandler.Serve)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS)
		r.Use(middleware.Timeout(apiTimeout))

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeJSONError(w, http.StatusNotFound, "Ressource introuvable")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeJSONError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
		})

		r.Get("/rss/{feed}", rssHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRateLimiter(authRateLimit, authBurst).Middleware())
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/hash", authHandler.Hash)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.JWTSecret, cfg.IsAdmin))
			r.Get("/content", contentHandler.ListPages)
			r.Get("/content/*", contentHandler.Get)
			r.Put("/content/*", contentHandler.Put)
			r.Post("/content/*", contentHandler.Restore)
			r.Get("/images", imagesHandler.List)
			r.Post("/images/upload", imagesHandler.Upload)
			r.Delete("/images/{key}", imagesHandler.Delete)
			r.Get("/debug/ssr", debugHandler.SSR)
		})
	})

	// Everything else is the public site
	r.NotFound(siteHandler.ServeHTTP)

	return r
}

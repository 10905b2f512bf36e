// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	rssFetchTimeout = 10 * time.Second
	rssMaxBodySize  = 2 << 20
	rssItemLimit    = 2
)

// rssDocument covers the subset of RSS 2.0 the public site renders.
type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title" json:"title"`
	Link        string `xml:"link" json:"link"`
	PubDate     string `xml:"pubDate" json:"pubDate"`
	Description string `xml:"description" json:"description,omitempty"`
}

// RSSHandler proxies configured upstream feeds, trimming them to the couple
// of latest entries the site displays. Proxying avoids exposing visitors to
// upstream CORS policies.
type RSSHandler struct {
	feeds  map[string]string
	client *http.Client
}

// NewRSSHandler creates an RSS proxy over the configured feed map.
func NewRSSHandler(feeds map[string]string) *RSSHandler {
	return &RSSHandler{
		feeds:  feeds,
		client: &http.Client{Timeout: rssFetchTimeout},
	}
}

// Get serves GET /api/rss/{feed}.
func (h *RSSHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feed")
	upstream, ok := h.feeds[name]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Flux inconnu")
		return
	}

	items, err := h.fetch(r.Context(), upstream)
	if err != nil {
		slog.Error("fetching rss feed", "feed", name, "error", err)
		writeJSONError(w, http.StatusBadGateway, "Flux indisponible")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *RSSHandler) fetch(ctx context.Context, upstream string) ([]rssItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
	if err != nil {
		return nil, err
	}
	// Some feed hosts reject requests without a browser-looking agent
	req.Header.Set("User-Agent", "staticlift-rss-proxy/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc rssDocument
	if err := xml.NewDecoder(io.LimitReader(resp.Body, rssMaxBodySize)).Decode(&doc); err != nil {
		return nil, err
	}

	items := doc.Channel.Items
	if len(items) > rssItemLimit {
		items = items[:rssItemLimit]
	}
	if items == nil {
		items = []rssItem{}
	}
	return items, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/staticlift/internal/store"
	"github.com/olegiv/staticlift/internal/version"
)

// HealthHandler serves the liveness endpoint. The instance id distinguishes
// processes behind a load balancer.
type HealthHandler struct {
	kv         *store.KV
	instanceID string
	started    time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(kv *store.KV) *HealthHandler {
	return &HealthHandler{
		kv:         kv,
		instanceID: uuid.NewString(),
		started:    time.Now(),
	}
}

// Health serves GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	overall := "ok"
	database := "ok"
	if err := h.kv.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		overall = "degraded"
		database = "error"
	}

	writeJSON(w, status, map[string]any{
		"status":   overall,
		"instance": h.instanceID,
		"version":  version.Version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"database": database,
	})
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that mirrors WARN and ERROR
// records into the key-value store, so operational incidents survive process
// restarts and can be inspected without shell access to the host.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/staticlift/internal/store"
)

// eventKeyPrefix namespaces persisted log events in the store.
const eventKeyPrefix = "event:"

// DefaultEventRetention bounds how long persisted events live.
const DefaultEventRetention = 7 * 24 * time.Hour

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level records to the key-value store.
type EventLogHandler struct {
	inner     slog.Handler
	kv        store.KeyValueStore
	level     slog.Level
	retention time.Duration
}

// NewEventLogHandler creates an EventLogHandler that wraps the given handler.
// Records at WARN level and above are written to both.
func NewEventLogHandler(inner slog.Handler, kv store.KeyValueStore) *EventLogHandler {
	return &EventLogHandler{
		inner:     inner,
		kv:        kv,
		level:     slog.LevelWarn,
		retention: DefaultEventRetention,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.persist(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventLogHandler{
		inner:     h.inner.WithAttrs(attrs),
		kv:        h.kv,
		level:     h.level,
		retention: h.retention,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner:     h.inner.WithGroup(name),
		kv:        h.kv,
		level:     h.level,
		retention: h.retention,
	}
}

type event struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Time    time.Time         `json:"time"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// persist writes a record to the store. A background context is used so the
// event is kept even when the request context is already cancelled. Store
// failures are swallowed: logging must never take the request path down.
func (h *EventLogHandler) persist(r slog.Record) {
	ev := event{
		Level:   r.Level.String(),
		Message: r.Message,
		Time:    r.Time.UTC(),
	}
	if r.NumAttrs() > 0 {
		ev.Attrs = make(map[string]string, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			ev.Attrs[a.Key] = a.Value.String()
			return true
		})
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}

	// Nanosecond keys keep near-simultaneous records from colliding
	key := eventKeyPrefix + strconv.FormatInt(r.Time.UnixNano(), 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.kv.PutWithTTL(ctx, key, raw, h.retention)
}

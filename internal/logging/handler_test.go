// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// captureKV records PutWithTTL calls.
type captureKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newCaptureKV() *captureKV {
	return &captureKV{data: make(map[string][]byte)}
}

func (c *captureKV) Get(context.Context, string) ([]byte, error) { return nil, nil }
func (c *captureKV) Put(context.Context, string, []byte) error   { return nil }
func (c *captureKV) List(context.Context, string) ([]string, error) {
	return nil, nil
}
func (c *captureKV) Delete(context.Context, string) error { return nil }

func (c *captureKV) PutWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *captureKV) snapshot() map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

func testLogger(kv *captureKV) *slog.Logger {
	inner := slog.NewTextHandler(io.Discard, nil)
	return slog.New(NewEventLogHandler(inner, kv))
}

func TestWarnAndErrorPersisted(t *testing.T) {
	kv := newCaptureKV()
	logger := testLogger(kv)

	logger.Warn("disk filling", "free", "12%")
	logger.Error("upstream failed", "error", "timeout")

	events := kv.snapshot()
	if len(events) != 2 {
		t.Fatalf("persisted %d events, want 2", len(events))
	}
	for key, raw := range events {
		if !strings.HasPrefix(key, "event:") {
			t.Errorf("event key = %q, want event: prefix", key)
		}
		var ev struct {
			Level   string            `json:"level"`
			Message string            `json:"message"`
			Attrs   map[string]string `json:"attrs"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if ev.Level != "WARN" && ev.Level != "ERROR" {
			t.Errorf("level = %q", ev.Level)
		}
		if len(ev.Attrs) == 0 {
			t.Errorf("event %q lost its attributes", ev.Message)
		}
	}
}

func TestInfoNotPersisted(t *testing.T) {
	kv := newCaptureKV()
	logger := testLogger(kv)

	logger.Info("request served", "path", "/")
	logger.Debug("noise")

	if got := len(kv.snapshot()); got != 0 {
		t.Errorf("persisted %d events for INFO/DEBUG, want 0", got)
	}
}

func TestWithAttrsCarriesStore(t *testing.T) {
	kv := newCaptureKV()
	logger := testLogger(kv).With("component", "scheduler")

	logger.Warn("job slow")

	if got := len(kv.snapshot()); got != 1 {
		t.Errorf("persisted %d events through With, want 1", got)
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testKV(t *testing.T) *KV {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "kv-test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	return NewKV(db)
}

func TestKVGetPut(t *testing.T) {
	kv := testKV(t)
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	if err := kv.Put(ctx, "content:index", []byte(`{"a":"b"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := kv.Get(ctx, "content:index")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":"b"}` {
		t.Errorf("Get = %q, want %q", got, `{"a":"b"}`)
	}

	// Overwrite replaces wholesale
	if err := kv.Put(ctx, "content:index", []byte(`{"c":"d"}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = kv.Get(ctx, "content:index")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != `{"c":"d"}` {
		t.Errorf("Get after overwrite = %q, want %q", got, `{"c":"d"}`)
	}
}

func TestKVExpiry(t *testing.T) {
	kv := testKV(t)
	ctx := context.Background()

	now := time.Now()
	kv.now = func() time.Time { return now }

	if err := kv.PutWithTTL(ctx, "history:index:1", []byte("old"), time.Hour); err != nil {
		t.Fatalf("PutWithTTL: %v", err)
	}

	if _, err := kv.Get(ctx, "history:index:1"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	// Advance past the TTL: the entry must be invisible even before purge
	kv.now = func() time.Time { return now.Add(2 * time.Hour) }

	if _, err := kv.Get(ctx, "history:index:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry = %v, want ErrNotFound", err)
	}

	keys, err := kv.List(ctx, "history:index:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List after expiry = %v, want empty", keys)
	}

	n, err := kv.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired removed %d rows, want 1", n)
	}
}

func TestKVListPrefix(t *testing.T) {
	kv := testKV(t)
	ctx := context.Background()

	entries := map[string]string{
		"history:index:100":   "a",
		"history:index:200":   "b",
		"history:contact:100": "c",
		"content:index":       "d",
	}
	for k, v := range entries {
		if err := kv.Put(ctx, k, []byte(v)); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	keys, err := kv.List(ctx, "history:index:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"history:index:100", "history:index:200"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestKVListEscapesLikeMetacharacters(t *testing.T) {
	kv := testKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "a_b:1", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put(ctx, "aXb:1", []byte("y")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := kv.List(ctx, "a_b:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a_b:1" {
		t.Errorf("List = %v, want [a_b:1] only", keys)
	}
}

func TestKVDeleteIdempotent(t *testing.T) {
	kv := testKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Deleting again is not an error
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(absent) = %v, want nil", err)
	}
}

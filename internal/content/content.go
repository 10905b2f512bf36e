// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/staticlift/internal/store"
)

const (
	contentKeyPrefix = "content:"
	metaKeyPrefix    = "meta:"
	historyKeyPrefix = "history:"

	// DefaultHistoryRetention bounds how long pre-overwrite snapshots live.
	DefaultHistoryRetention = 30 * 24 * time.Hour

	// historyListLimit caps how many snapshots a listing exposes, even when
	// more exist in the store.
	historyListLimit = 20
)

var (
	// ErrUnknownPage means the page id is not in the static catalog.
	ErrUnknownPage = errors.New("content: unknown page")
	// ErrVersionNotFound means no history snapshot exists at the timestamp.
	ErrVersionNotFound = errors.New("content: version not found")
)

// Metadata describes the last mutation of a page's content record.
type Metadata struct {
	LastModified time.Time `json:"lastModified"`
	ModifiedBy   string    `json:"modifiedBy"`
	RestoredFrom int64     `json:"restoredFrom,omitempty"`
}

// PageInfo is a catalog entry joined with its mutation metadata, if any.
type PageInfo struct {
	PageDescriptor
	LastModified *time.Time `json:"lastModified"`
	ModifiedBy   *string    `json:"modifiedBy"`
}

// Version identifies one history snapshot of a page.
type Version struct {
	Key       string    `json:"key"`
	Timestamp int64     `json:"timestamp"`
	Date      time.Time `json:"date"`
}

// Service implements the content operations over a KeyValueStore.
// It is stateless: every operation is an independent set of store calls, so
// concurrent editors race with last-write-wins semantics and the history
// mechanism provides recovery rather than prevention.
type Service struct {
	kv        store.KeyValueStore
	catalog   []PageDescriptor
	retention time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a content service with the default catalog.
func NewService(kv store.KeyValueStore, retention time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	return &Service{
		kv:        kv,
		catalog:   Catalog(),
		retention: retention,
		now:       time.Now,
	}
}

// KnownPage reports whether a page id is in the catalog.
func (s *Service) KnownPage(pageID string) bool {
	for _, p := range s.catalog {
		if p.ID == pageID {
			return true
		}
	}
	return false
}

// ListPages returns every catalog entry with its metadata. Pages that have
// never been saved report null modification info.
func (s *Service) ListPages(ctx context.Context) ([]PageInfo, error) {
	pages := make([]PageInfo, 0, len(s.catalog))
	for _, desc := range s.catalog {
		info := PageInfo{PageDescriptor: desc}

		raw, err := s.kv.Get(ctx, metaKeyPrefix+desc.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// no metadata yet
		case err != nil:
			return nil, fmt.Errorf("reading metadata for %q: %w", desc.ID, err)
		default:
			var meta Metadata
			if err := json.Unmarshal(raw, &meta); err == nil {
				t := meta.LastModified
				info.LastModified = &t
				by := meta.ModifiedBy
				info.ModifiedBy = &by
			}
		}

		pages = append(pages, info)
	}
	return pages, nil
}

// GetContent returns the content record for a page. Absence is not an error:
// a page with no stored record yields an empty mapping.
func (s *Service) GetContent(ctx context.Context, pageID string) (map[string]string, error) {
	raw, err := s.kv.Get(ctx, contentKeyPrefix+pageID)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading content for %q: %w", pageID, err)
	}

	record := map[string]string{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding content for %q: %w", pageID, err)
	}
	return record, nil
}

// PutContent replaces a page's content record wholesale. When a prior record
// exists it is snapshotted to history first, so every overwrite of existing
// content is undoable. The snapshot and the overwrite are two independent
// store writes issued in that order: a crash in between leaves the old
// content live alongside an extra snapshot, never lost content.
func (s *Service) PutContent(ctx context.Context, pageID string, record map[string]string, identity string) error {
	if !s.KnownPage(pageID) {
		return fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}

	now := s.now()

	previous, err := s.kv.Get(ctx, contentKeyPrefix+pageID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("reading previous content for %q: %w", pageID, err)
	}
	if previous != nil {
		if err := s.snapshot(ctx, pageID, previous, now); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding content for %q: %w", pageID, err)
	}
	if err := s.kv.Put(ctx, contentKeyPrefix+pageID, raw); err != nil {
		return fmt.Errorf("writing content for %q: %w", pageID, err)
	}

	return s.writeMetadata(ctx, pageID, Metadata{
		LastModified: now.UTC(),
		ModifiedBy:   identity,
	})
}

// GetHistory lists a page's snapshots newest-first, capped at 20 entries.
// A page with no history yields an empty list.
func (s *Service) GetHistory(ctx context.Context, pageID string) ([]Version, error) {
	prefix := historyKeyPrefix + pageID + ":"
	keys, err := s.kv.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing history for %q: %w", pageID, err)
	}

	versions := make([]Version, 0, len(keys))
	for _, key := range keys {
		ts, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, Version{
			Key:       key,
			Timestamp: ts,
			Date:      time.UnixMilli(ts).UTC(),
		})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Timestamp > versions[j].Timestamp })
	if len(versions) > historyListLimit {
		versions = versions[:historyListLimit]
	}
	return versions, nil
}

// RestoreVersion overwrites a page's content with a historical snapshot.
// The content that was live immediately before the restore is snapshotted
// first, so a restore is itself undoable.
func (s *Service) RestoreVersion(ctx context.Context, pageID string, timestamp int64, identity string) error {
	historical, err := s.kv.Get(ctx, historyKey(pageID, timestamp))
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s@%d", ErrVersionNotFound, pageID, timestamp)
	}
	if err != nil {
		return fmt.Errorf("reading history for %q: %w", pageID, err)
	}

	now := s.now()

	current, err := s.kv.Get(ctx, contentKeyPrefix+pageID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("reading current content for %q: %w", pageID, err)
	}
	if current != nil {
		if err := s.snapshot(ctx, pageID, current, now); err != nil {
			return err
		}
	}

	// The historical payload is written back verbatim
	if err := s.kv.Put(ctx, contentKeyPrefix+pageID, historical); err != nil {
		return fmt.Errorf("restoring content for %q: %w", pageID, err)
	}

	return s.writeMetadata(ctx, pageID, Metadata{
		LastModified: now.UTC(),
		ModifiedBy:   identity,
		RestoredFrom: timestamp,
	})
}

func (s *Service) snapshot(ctx context.Context, pageID string, raw []byte, now time.Time) error {
	key := historyKey(pageID, now.UnixMilli())
	if err := s.kv.PutWithTTL(ctx, key, raw, s.retention); err != nil {
		return fmt.Errorf("snapshotting content for %q: %w", pageID, err)
	}
	return nil
}

func (s *Service) writeMetadata(ctx context.Context, pageID string, meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata for %q: %w", pageID, err)
	}
	if err := s.kv.Put(ctx, metaKeyPrefix+pageID, raw); err != nil {
		return fmt.Errorf("writing metadata for %q: %w", pageID, err)
	}
	return nil
}

func historyKey(pageID string, timestamp int64) string {
	return historyKeyPrefix + pageID + ":" + strconv.FormatInt(timestamp, 10)
}

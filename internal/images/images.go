// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package images implements the uploaded media service: validated uploads
// keyed by upload time, listing, serving and deletion over a blob.Store.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"
	"time"

	// Register decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/olegiv/staticlift/internal/blob"
)

const (
	// MaxUploadSize caps a single uploaded image at 5 MiB.
	MaxUploadSize = 5 << 20

	listLimit = 500
)

var (
	// ErrUnsupportedType means the upload's content type is not an allowed
	// image format.
	ErrUnsupportedType = errors.New("images: unsupported content type")
	// ErrTooLarge means the upload exceeds MaxUploadSize.
	ErrTooLarge = errors.New("images: file too large")
)

// allowedTypes is the upload allow-list. SVG is accepted for logos and icons
// even though it carries no intrinsic pixel dimensions.
var allowedTypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

// Image describes one stored upload.
type Image struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	Uploaded    time.Time `json:"uploaded"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
}

// Service validates and stores uploads in a blob.Store.
type Service struct {
	store blob.Store

	// now is swappable for tests.
	now func() time.Time
}

// NewService wraps a blob store. A nil store is allowed; callers must check
// Available before use.
func NewService(store blob.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Available reports whether a storage backend is configured.
func (s *Service) Available() bool {
	return s != nil && s.store != nil
}

// Upload validates and stores an image, returning its descriptor. The key is
// the upload timestamp in milliseconds joined to the sanitized filename, which
// keeps listings in rough chronological order and avoids collisions.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (*Image, error) {
	if _, ok := allowedTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	now := s.now()
	key := strconv.FormatInt(now.UnixMilli(), 10) + "-" + SanitizeFilename(filename, contentType)

	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	img := &Image{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Uploaded:    now.UTC(),
	}
	// Dimension probing is best-effort; SVG and corrupt payloads yield none
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}

// List returns stored images, capped at 500.
func (s *Service) List(ctx context.Context) ([]Image, error) {
	objects, err := s.store.List(ctx, listLimit)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	images := make([]Image, 0, len(objects))
	for _, obj := range objects {
		images = append(images, Image{
			Key:         obj.Key,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			Uploaded:    obj.Uploaded,
		})
	}
	return images, nil
}

// Get returns an image's payload and content type.
func (s *Service) Get(ctx context.Context, key string) ([]byte, string, error) {
	return s.store.Get(ctx, key)
}

// Delete removes an image. Deleting an absent key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// SanitizeFilename lower-cases a filename and collapses anything outside
// [a-z0-9._-] into a hyphen, appending the canonical extension for the
// content type when the name lacks one.
func SanitizeFilename(filename, contentType string) string {
	name := strings.ToLower(path.Base(filename))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name = strings.Trim(b.String(), ".-")
	if name == "" {
		name = "upload"
	}

	if path.Ext(name) == "" {
		if ext, ok := allowedTypes[contentType]; ok {
			name += ext
		}
	}
	return name
}

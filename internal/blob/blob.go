// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package blob abstracts binary object storage for uploaded media. Two
// backends exist: an S3 bucket for provisioned deployments and a local
// directory for everything else.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means no object exists under the requested key.
var ErrNotFound = errors.New("blob: object not found")

// Object describes one stored object in a listing.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Uploaded    time.Time `json:"uploaded"`
}

// Store is the object storage capability the image service builds on.
type Store interface {
	// Put stores an object under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns an object's payload and content type, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// List returns up to limit objects, lexicographically by key.
	List(ctx context.Context, limit int) ([]Object, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ssr

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ContentSource yields a page's stored content record. Absence is an empty
// mapping, not an error.
type ContentSource interface {
	GetContent(ctx context.Context, pageID string) (map[string]string, error)
}

// Injector merges shared and page content into served HTML.
type Injector struct {
	source       ContentSource
	sharedPageID string
}

// NewInjector builds an injector reading from source. sharedPageID names the
// pseudo-page whose fields apply site-wide.
func NewInjector(source ContentSource, sharedPageID string) *Injector {
	return &Injector{source: source, sharedPageID: sharedPageID}
}

// Inject rewrites an HTML page with the stored content for pageID merged over
// the shared record. Page fields shadow shared fields of the same name. When
// neither record has any fields the page is returned untouched and the flag
// is false.
func (in *Injector) Inject(ctx context.Context, pageID string, page []byte) ([]byte, bool, error) {
	merged, err := in.MergedContent(ctx, pageID)
	if err != nil {
		return nil, false, err
	}
	if len(merged) == 0 {
		return page, false, nil
	}
	return Rewrite(page, merged)
}

// MergedContent fetches the shared and page records concurrently and merges
// them, page fields winning.
func (in *Injector) MergedContent(ctx context.Context, pageID string) (map[string]string, error) {
	var shared, page map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shared, err = in.source.GetContent(gctx, in.sharedPageID)
		if err != nil {
			return fmt.Errorf("fetching shared content: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		page, err = in.source.GetContent(gctx, pageID)
		if err != nil {
			return fmt.Errorf("fetching content for %q: %w", pageID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(shared)+len(page))
	for k, v := range shared {
		merged[k] = v
	}
	for k, v := range page {
		merged[k] = v
	}
	return merged, nil
}

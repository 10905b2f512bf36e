// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance: expired key-value entries are
// invisible to reads as soon as their TTL passes, and the purge job reclaims
// their storage.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/staticlift/internal/store"
)

// purgeTimeout bounds one purge run.
const purgeTimeout = time.Minute

// Scheduler handles periodic store maintenance.
type Scheduler struct {
	kv     *store.KV
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance.
func New(kv *store.KV, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		kv:     kv,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins the scheduler with an hourly purge of expired entries.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@hourly", func() {
		if err := s.purgeExpired(); err != nil {
			s.logger.Error("failed to purge expired entries", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// purgeExpired removes entries whose TTL has passed.
func (s *Scheduler) purgeExpired() error {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	removed, err := s.kv.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("purged expired entries", "count", removed)
	}
	return nil
}

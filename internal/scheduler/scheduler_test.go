// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"testing"

	"github.com/olegiv/staticlift/internal/testutil"
)

func testScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(testutil.TestKV(t), testutil.TestLogger())
}

func TestStartStop(t *testing.T) {
	s := testScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("registered %d jobs, want 1", got)
	}
	s.Stop()
}

func TestPurgeExpiredRuns(t *testing.T) {
	s := testScheduler(t)

	if err := s.purgeExpired(); err != nil {
		t.Errorf("purgeExpired on empty store: %v", err)
	}
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
)

// SessionSweeper periodically force-closes sessions that never received a
// leave signal, such as a guest whose browser lost its connection.
type SessionSweeper struct {
	reconciler *LeaveReconciler
	ttl        time.Duration
	interval   time.Duration
}

// NewSessionSweeper creates a sweeper. A zero ttl disables it.
func NewSessionSweeper(reconciler *LeaveReconciler, ttl, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{reconciler: reconciler, ttl: ttl, interval: interval}
}

// Enabled reports whether the sweeper has anything to do.
func (s *SessionSweeper) Enabled() bool {
	return s.ttl > 0 && s.interval > 0
}

// Run sweeps every interval until ctx is cancelled.
func (s *SessionSweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		slog.InfoContext(ctx, "session expiry sweep disabled")
		return
	}

	slog.InfoContext(ctx, "session expiry sweep started", "ttl", s.ttl.String(), "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "session expiry sweep stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass.
func (s *SessionSweeper) Sweep(ctx context.Context) int {
	expired, err := s.reconciler.ExpireStaleSessions(ctx, s.ttl)
	if err != nil {
		slog.ErrorContext(ctx, "session expiry sweep failed", logging.ErrKey, err)
		return expired
	}
	if expired > 0 {
		slog.InfoContext(ctx, "expired stale sessions", "count", expired)
	}
	return expired
}

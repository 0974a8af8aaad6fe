// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package service holds the meeting lifecycle and participant-session
// reconciliation logic.
package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// Service is implemented by every service that can report its readiness.
type Service interface {
	ServiceReady() bool
}

var _ Service = (*MeetingSessionService)(nil)

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// DefaultCapacity is the active-participant ceiling of meetings without their own.
	DefaultCapacity int
	// SessionTTL is how long a session may stay open without any leave signal.
	// Zero disables the expiry sweep.
	SessionTTL time.Duration
	// SweepInterval is how often open sessions are checked against SessionTTL.
	SweepInterval time.Duration
	// RoomTokenTTL is the lifetime of provider access tokens handed to joiners.
	RoomTokenTTL time.Duration
	// JoinRequiresMembership gates authenticated joins on workspace membership.
	JoinRequiresMembership bool
}

// DefaultServiceConfig returns the configuration used when nothing is overridden.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultCapacity: constants.DefaultMeetingCapacity,
		SessionTTL:      constants.DefaultSessionTTL,
		SweepInterval:   constants.DefaultSessionSweepInterval,
		RoomTokenTTL:    constants.DefaultRoomTokenTTL,
	}
}

const maxConflictRetries = 5

// retryOnConflict re-runs op while it fails with a revision conflict. Every
// other error is returned as is.
func retryOnConflict(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(newConflictBackOff()),
		backoff.WithMaxTries(maxConflictRetries),
	)
	return err
}

func newConflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

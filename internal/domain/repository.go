// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// MeetingRepository defines the interface for meeting storage operations.
// This interface can be implemented by different storage backends (NATS, PostgreSQL, etc.)
type MeetingRepository interface {
	// CreateMeeting stores a new meeting and reserves its join code.
	// A join code that is already taken yields a conflict error.
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error)
	GetMeetingWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error)
	GetMeetingByJoinCode(ctx context.Context, joinCode string) (*models.Meeting, error)
	// UpdateMeeting writes the meeting if its stored revision still matches.
	UpdateMeeting(ctx context.Context, meeting *models.Meeting, revision uint64) error
	ListMeetings(ctx context.Context) ([]*models.Meeting, error)
	IsReady(ctx context.Context) bool
}

// ParticipantRepository stores participants keyed by (meeting, participant key).
type ParticipantRepository interface {
	// CreateParticipant fails with a conflict error when the meeting already has a
	// participant with the same key.
	CreateParticipant(ctx context.Context, participant *models.Participant) error
	GetParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) (*models.Participant, uint64, error)
	UpdateParticipant(ctx context.Context, participant *models.Participant, revision uint64) error
	// DeleteParticipant removes the record. Callers hold the meeting lock.
	DeleteParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) error
	ListParticipants(ctx context.Context, meetingUID string) ([]*models.Participant, error)
}

// SessionIndex resolves a session uid to the participant record that owns it.
type SessionIndex interface {
	PutSessionRef(ctx context.Context, ref *models.SessionRef) error
	GetSessionRef(ctx context.Context, sessionUID string) (*models.SessionRef, error)
}

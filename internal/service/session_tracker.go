// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

// SessionTracker opens and closes sessions on participant records. It only
// mutates the records it is given; persisting them is up to the caller.
type SessionTracker struct {
	newUID func() string
}

// NewSessionTracker creates a SessionTracker that assigns uuid participant uids.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{newUID: uuid.NewString}
}

// Join opens session sessionUID for key. A nil participant is created first.
// Joining again with a session uid the participant already holds changes nothing,
// so a retried join does not open a second session.
func (t *SessionTracker) Join(
	meeting *models.Meeting,
	participant *models.Participant,
	key models.ParticipantKey,
	displayName string,
	sessionUID string,
	now time.Time,
) (*models.Participant, *models.Session) {
	if participant == nil {
		participant = &models.Participant{
			UID:           t.newUID(),
			MeetingUID:    meeting.UID,
			Key:           key,
			DisplayName:   displayName,
			FirstJoinedAt: now,
			CreatedAt:     now,
		}
	}

	if i := participant.SessionIndex(sessionUID); i >= 0 {
		return participant, &participant.Sessions[i]
	}

	if displayName != "" {
		participant.DisplayName = displayName
	}
	participant.Sessions = append(participant.Sessions, models.Session{
		UID:            sessionUID,
		ParticipantUID: participant.UID,
		JoinTime:       now,
	})
	participant.LastLeftAt = nil
	participant.UpdatedAt = now

	return participant, &participant.Sessions[len(participant.Sessions)-1]
}

// CloseSession closes the named session, or the oldest open one when
// sessionUID is empty. It returns the closed session, or nil when there was
// nothing left to close.
func (t *SessionTracker) CloseSession(
	participant *models.Participant,
	sessionUID string,
	reason models.LeaveReason,
	now time.Time,
) (*models.Session, error) {
	idx := participant.OldestOpenSessionIndex()
	if sessionUID != "" {
		idx = participant.SessionIndex(sessionUID)
		if idx < 0 {
			return nil, domain.NewNotFoundError("session not found")
		}
	}
	if idx < 0 || !participant.Sessions[idx].IsOpen() {
		return nil, nil
	}

	t.close(participant, idx, reason, now)
	return &participant.Sessions[idx], nil
}

// CloseAll closes every open session of the participant at the same instant.
func (t *SessionTracker) CloseAll(participant *models.Participant, reason models.LeaveReason, now time.Time) []models.Session {
	var closed []models.Session
	for i := range participant.Sessions {
		if participant.Sessions[i].IsOpen() {
			t.close(participant, i, reason, now)
			closed = append(closed, participant.Sessions[i])
		}
	}
	return closed
}

func (t *SessionTracker) close(participant *models.Participant, idx int, reason models.LeaveReason, now time.Time) {
	s := &participant.Sessions[idx]
	if now.Before(s.JoinTime) {
		now = s.JoinTime
	}
	s.LeaveTime = utils.TimePtr(now)
	s.LeaveReason = reason

	participant.TotalDurationSeconds += s.DurationSeconds()
	if participant.OpenSessionCount() == 0 {
		participant.LastLeftAt = utils.TimePtr(now)
	}
	participant.UpdatedAt = now
}

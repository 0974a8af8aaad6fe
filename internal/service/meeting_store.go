// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/concurrent"
)

// meetingStore bundles the repositories with the per-meeting lock every
// mutation of a meeting's sessions runs under.
type meetingStore struct {
	meetings     domain.MeetingRepository
	participants domain.ParticipantRepository
	sessions     domain.SessionIndex
	locks        *concurrent.KeyedMutex
}

func newMeetingStore(meetings domain.MeetingRepository, participants domain.ParticipantRepository, sessions domain.SessionIndex) *meetingStore {
	return &meetingStore{
		meetings:     meetings,
		participants: participants,
		sessions:     sessions,
		locks:        concurrent.NewKeyedMutex(),
	}
}

func (s *meetingStore) ready() bool {
	return s.meetings != nil && s.participants != nil && s.sessions != nil
}

// locked runs op while holding the meeting's lock. Revision conflicts, which
// only another replica can cause, re-run op from a fresh read.
func (s *meetingStore) locked(ctx context.Context, meetingUID string, op func() error) error {
	unlock := s.locks.Lock(meetingUID)
	defer unlock()
	return retryOnConflict(ctx, op)
}

// findParticipant returns the participant and its revision, or nil when the
// meeting has no participant with that key yet.
func (s *meetingStore) findParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) (*models.Participant, uint64, error) {
	p, rev, err := s.participants.GetParticipant(ctx, meetingUID, key)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return p, rev, nil
}

// saveParticipant creates the participant when revision is zero and updates it otherwise.
func (s *meetingStore) saveParticipant(ctx context.Context, p *models.Participant, revision uint64) error {
	if revision == 0 {
		return s.participants.CreateParticipant(ctx, p)
	}
	return s.participants.UpdateParticipant(ctx, p, revision)
}

// restoreParticipant writes prev back over a participant record this
// operation already stored, so a write that failed further on leaves no trace.
// A nil prev means the operation created the record, which is then removed.
func (s *meetingStore) restoreParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey, prev *models.Participant, cause error) {
	var err error
	if prev == nil {
		err = s.participants.DeleteParticipant(ctx, meetingUID, key)
	} else {
		var rev uint64
		if _, rev, err = s.participants.GetParticipant(ctx, meetingUID, key); err == nil {
			err = s.participants.UpdateParticipant(ctx, prev, rev)
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to restore participant after a failed write",
			"meeting_uid", meetingUID,
			"participant_key", key.String(),
			"cause", cause.Error(),
			logging.ErrKey, err,
			logging.PriorityCritical(),
		)
	}
}

// settleAfterClose soft-ends the meeting when its last active participant has left.
func (s *meetingStore) settleAfterClose(ctx context.Context, lifecycle MeetingLifecycle, meetingUID string, now time.Time) (*models.Meeting, bool, error) {
	m, rev, err := s.meetings.GetMeetingWithRevision(ctx, meetingUID)
	if err != nil {
		return nil, false, err
	}
	participants, err := s.participants.ListParticipants(ctx, meetingUID)
	if err != nil {
		return nil, false, err
	}

	if !lifecycle.OnSessionClosed(m, ActiveCount(participants), now) {
		return m, false, nil
	}
	if err := s.meetings.UpdateMeeting(ctx, m, rev); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

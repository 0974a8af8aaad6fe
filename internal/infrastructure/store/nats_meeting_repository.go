// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
)

// joinCodeReservation maps a join code to the meeting that owns it.
type joinCodeReservation struct {
	MeetingUID string    `json:"meeting_uid"`
	CreatedAt  time.Time `json:"created_at"`
}

// NatsMeetingRepository is the NATS KV store repository for meetings.
type NatsMeetingRepository struct {
	meetings  *NatsBaseRepository[models.Meeting]
	joinCodes *NatsBaseRepository[joinCodeReservation]
	keys      *KeyBuilder
}

// NewNatsMeetingRepository creates a new NATS KV store repository for meetings.
func NewNatsMeetingRepository(meetings, joinCodes INatsKeyValue, codec Codec) *NatsMeetingRepository {
	return &NatsMeetingRepository{
		meetings:  NewNatsBaseRepository[models.Meeting](meetings, "meeting", codec),
		joinCodes: NewNatsBaseRepository[joinCodeReservation](joinCodes, "join code", codec),
		keys:      NewKeyBuilder(""),
	}
}

// IsReady reports whether both buckets are bound.
func (s *NatsMeetingRepository) IsReady(ctx context.Context) bool {
	return s.meetings.IsReady() && s.joinCodes.IsReady()
}

// CreateMeeting reserves the join code first so two meetings can never share one.
func (s *NatsMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	codeKey := s.keys.JoinCodeKey(meeting.JoinCode)
	reservation := &joinCodeReservation{MeetingUID: meeting.UID, CreatedAt: meeting.CreatedAt}
	if _, err := s.joinCodes.Create(ctx, codeKey, reservation); err != nil {
		return err
	}

	if _, err := s.meetings.Create(ctx, s.keys.MeetingKey(meeting.UID), meeting); err != nil {
		if errDel := s.joinCodes.DeleteWithoutRevision(ctx, codeKey); errDel != nil {
			slog.WarnContext(ctx, "failed to release join code after meeting create failed",
				logging.ErrKey, errDel, "join_code", meeting.JoinCode)
		}
		return err
	}

	return nil
}

func (s *NatsMeetingRepository) GetMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	meeting, _, err := s.GetMeetingWithRevision(ctx, meetingUID)
	return meeting, err
}

func (s *NatsMeetingRepository) GetMeetingWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	meeting, revision, err := s.meetings.GetWithRevision(ctx, s.keys.MeetingKey(meetingUID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, 0, domain.NewNotFoundError("meeting not found", err)
		}
		return nil, 0, err
	}
	return meeting, revision, nil
}

func (s *NatsMeetingRepository) GetMeetingByJoinCode(ctx context.Context, joinCode string) (*models.Meeting, error) {
	reservation, err := s.joinCodes.Get(ctx, s.keys.JoinCodeKey(joinCode))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError("no meeting uses this join code", err)
		}
		return nil, err
	}
	return s.GetMeeting(ctx, reservation.MeetingUID)
}

func (s *NatsMeetingRepository) UpdateMeeting(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	_, err := s.meetings.Update(ctx, s.keys.MeetingKey(meeting.UID), meeting, revision)
	return err
}

func (s *NatsMeetingRepository) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	return s.meetings.ListEntities(ctx, "")
}

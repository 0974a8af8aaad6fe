// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// NatsParticipantRepository stores participants, sessions included, one KV
// entry per (meeting, participant key).
type NatsParticipantRepository struct {
	participants *NatsBaseRepository[models.Participant]
	keys         *KeyBuilder
}

// NewNatsParticipantRepository creates a new NATS KV store repository for participants.
func NewNatsParticipantRepository(participants INatsKeyValue, codec Codec) *NatsParticipantRepository {
	return &NatsParticipantRepository{
		participants: NewNatsBaseRepository[models.Participant](participants, "participant", codec),
		keys:         NewKeyBuilder(""),
	}
}

func (s *NatsParticipantRepository) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	_, err := s.participants.Create(ctx, s.keys.ParticipantKey(participant.MeetingUID, participant.Key), participant)
	return err
}

func (s *NatsParticipantRepository) GetParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) (*models.Participant, uint64, error) {
	participant, revision, err := s.participants.GetWithRevision(ctx, s.keys.ParticipantKey(meetingUID, key))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, 0, domain.NewNotFoundError("participant not found", err)
		}
		return nil, 0, err
	}
	return participant, revision, nil
}

func (s *NatsParticipantRepository) UpdateParticipant(ctx context.Context, participant *models.Participant, revision uint64) error {
	_, err := s.participants.Update(ctx, s.keys.ParticipantKey(participant.MeetingUID, participant.Key), participant, revision)
	return err
}

func (s *NatsParticipantRepository) DeleteParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) error {
	return s.participants.DeleteWithoutRevision(ctx, s.keys.ParticipantKey(meetingUID, key))
}

func (s *NatsParticipantRepository) ListParticipants(ctx context.Context, meetingUID string) ([]*models.Participant, error) {
	return s.participants.ListEntities(ctx, s.keys.ParticipantPrefix(meetingUID))
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// ParticipantRepository stores participants keyed by (meeting_uid, participant_key).
type ParticipantRepository struct {
	db DB
}

// NewParticipantRepository creates a participant repository.
func NewParticipantRepository(db DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) CreateParticipant(ctx context.Context, participant *models.Participant) error {
	ctx, span := startSpan(ctx, "insert", "participants")
	defer span.End()

	data, err := json.Marshal(participant)
	if err != nil {
		return domain.NewInternalError("failed to marshal participant", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO participants (meeting_uid, participant_key, revision, data) VALUES ($1, $2, 1, $3)`,
		participant.MeetingUID, participant.Key.String(), data)
	if err != nil {
		return mapError(ctx, span, "participant", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *ParticipantRepository) GetParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) (*models.Participant, uint64, error) {
	ctx, span := startSpan(ctx, "select", "participants")
	defer span.End()

	var participant models.Participant
	var revision uint64
	row := r.db.QueryRow(ctx,
		`SELECT data, revision FROM participants WHERE meeting_uid = $1 AND participant_key = $2`,
		meetingUID, key.String())
	if err := scanDocument(row, &participant, &revision); err != nil {
		return nil, 0, mapError(ctx, span, "participant", err)
	}

	span.SetStatus(codes.Ok, "")
	return &participant, revision, nil
}

func (r *ParticipantRepository) UpdateParticipant(ctx context.Context, participant *models.Participant, revision uint64) error {
	ctx, span := startSpan(ctx, "update", "participants")
	defer span.End()

	data, err := json.Marshal(participant)
	if err != nil {
		return domain.NewInternalError("failed to marshal participant", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE participants SET data = $3, revision = revision + 1
		 WHERE meeting_uid = $1 AND participant_key = $2 AND revision = $4`,
		participant.MeetingUID, participant.Key.String(), data, int64(revision))
	if err != nil {
		return mapError(ctx, span, "participant", err)
	}
	if tag.RowsAffected() == 0 {
		err := revisionMiss(ctx, r.db, "participant",
			`SELECT 1 FROM participants WHERE meeting_uid = $1 AND participant_key = $2`,
			participant.MeetingUID, participant.Key.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, meetingUID string, key models.ParticipantKey) error {
	ctx, span := startSpan(ctx, "delete", "participants")
	defer span.End()

	tag, err := r.db.Exec(ctx,
		`DELETE FROM participants WHERE meeting_uid = $1 AND participant_key = $2`,
		meetingUID, key.String())
	if err != nil {
		return mapError(ctx, span, "participant", err)
	}
	if tag.RowsAffected() == 0 {
		err := domain.NewNotFoundError("participant not found")
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *ParticipantRepository) ListParticipants(ctx context.Context, meetingUID string) ([]*models.Participant, error) {
	ctx, span := startSpan(ctx, "select", "participants")
	defer span.End()

	rows, err := r.db.Query(ctx,
		`SELECT data FROM participants WHERE meeting_uid = $1 ORDER BY participant_key`, meetingUID)
	if err != nil {
		return nil, mapError(ctx, span, "participant", err)
	}
	participants, err := collectDocuments[models.Participant](rows)
	if err != nil {
		return nil, mapError(ctx, span, "participant", err)
	}

	span.SetStatus(codes.Ok, "")
	return participants, nil
}

// SessionIndex stores session references in the session_refs table.
type SessionIndex struct {
	db DB
}

// NewSessionIndex creates a session index.
func NewSessionIndex(db DB) *SessionIndex {
	return &SessionIndex{db: db}
}

func (r *SessionIndex) PutSessionRef(ctx context.Context, ref *models.SessionRef) error {
	ctx, span := startSpan(ctx, "insert", "session_refs")
	defer span.End()

	data, err := json.Marshal(ref)
	if err != nil {
		return domain.NewInternalError("failed to marshal session", err)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO session_refs (session_uid, data) VALUES ($1, $2)`, ref.SessionUID, data); err != nil {
		return mapError(ctx, span, "session", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *SessionIndex) GetSessionRef(ctx context.Context, sessionUID string) (*models.SessionRef, error) {
	ctx, span := startSpan(ctx, "select", "session_refs")
	defer span.End()

	var ref models.SessionRef
	row := r.db.QueryRow(ctx, `SELECT data FROM session_refs WHERE session_uid = $1`, sessionUID)
	if err := scanDocument(row, &ref, nil); err != nil {
		return nil, mapError(ctx, span, "session", err)
	}

	span.SetStatus(codes.Ok, "")
	return &ref, nil
}

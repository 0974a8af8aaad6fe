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

// MeetingRepository stores meetings in the meetings table.
type MeetingRepository struct {
	db DB
}

// NewMeetingRepository creates a meeting repository.
func NewMeetingRepository(db DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) IsReady(ctx context.Context) bool {
	return r.db != nil && r.db.Ping(ctx) == nil
}

func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	ctx, span := startSpan(ctx, "insert", "meetings")
	defer span.End()

	data, err := json.Marshal(meeting)
	if err != nil {
		return domain.NewInternalError("failed to marshal meeting", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO meetings (uid, join_code, revision, data) VALUES ($1, $2, 1, $3)`,
		meeting.UID, meeting.JoinCode, data)
	if err != nil {
		return mapError(ctx, span, "meeting", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *MeetingRepository) GetMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	meeting, _, err := r.GetMeetingWithRevision(ctx, meetingUID)
	return meeting, err
}

func (r *MeetingRepository) GetMeetingWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	ctx, span := startSpan(ctx, "select", "meetings")
	defer span.End()

	var meeting models.Meeting
	var revision uint64
	row := r.db.QueryRow(ctx, `SELECT data, revision FROM meetings WHERE uid = $1`, meetingUID)
	if err := scanDocument(row, &meeting, &revision); err != nil {
		return nil, 0, mapError(ctx, span, "meeting", err)
	}

	span.SetStatus(codes.Ok, "")
	return &meeting, revision, nil
}

func (r *MeetingRepository) GetMeetingByJoinCode(ctx context.Context, joinCode string) (*models.Meeting, error) {
	ctx, span := startSpan(ctx, "select", "meetings")
	defer span.End()

	var meeting models.Meeting
	row := r.db.QueryRow(ctx, `SELECT data FROM meetings WHERE join_code = $1`, joinCode)
	if err := scanDocument(row, &meeting, nil); err != nil {
		return nil, mapError(ctx, span, "meeting", err)
	}

	span.SetStatus(codes.Ok, "")
	return &meeting, nil
}

func (r *MeetingRepository) UpdateMeeting(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	ctx, span := startSpan(ctx, "update", "meetings")
	defer span.End()

	data, err := json.Marshal(meeting)
	if err != nil {
		return domain.NewInternalError("failed to marshal meeting", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE meetings SET data = $2, revision = revision + 1 WHERE uid = $1 AND revision = $3`,
		meeting.UID, data, int64(revision))
	if err != nil {
		return mapError(ctx, span, "meeting", err)
	}
	if tag.RowsAffected() == 0 {
		err := revisionMiss(ctx, r.db, "meeting", `SELECT 1 FROM meetings WHERE uid = $1`, meeting.UID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *MeetingRepository) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	ctx, span := startSpan(ctx, "select", "meetings")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT data FROM meetings ORDER BY uid`)
	if err != nil {
		return nil, mapError(ctx, span, "meeting", err)
	}
	meetings, err := collectDocuments[models.Meeting](rows)
	if err != nil {
		return nil, mapError(ctx, span, "meeting", err)
	}

	span.SetStatus(codes.Ok, "")
	return meetings, nil
}

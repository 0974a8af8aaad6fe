// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

// ReportAggregator builds the attendance report of a meeting. It never writes.
type ReportAggregator struct {
	meetings     domain.MeetingRepository
	participants domain.ParticipantRepository
	now          func() time.Time
}

// NewReportAggregator creates a ReportAggregator over the repositories.
func NewReportAggregator(meetings domain.MeetingRepository, participants domain.ParticipantRepository, now func() time.Time) *ReportAggregator {
	if now == nil {
		now = time.Now
	}
	return &ReportAggregator{meetings: meetings, participants: participants, now: now}
}

// BuildReport returns one row per participant key with its sessions in join order.
func (a *ReportAggregator) BuildReport(ctx context.Context, meetingUID string) (*models.MeetingReport, error) {
	meeting, err := a.meetings.GetMeeting(ctx, meetingUID)
	if err != nil {
		return nil, err
	}
	participants, err := a.participants.ListParticipants(ctx, meetingUID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	rows := Aggregate(participants, now)

	report := &models.MeetingReport{
		MeetingUID:   meeting.UID,
		Title:        meeting.Title,
		Status:       meeting.Status,
		EndType:      meeting.EndType,
		StartedAt:    meeting.StartedAt,
		EndedAt:      meeting.EndedAt,
		GeneratedAt:  now,
		Participants: rows,
	}
	for _, row := range rows {
		if row.Active {
			report.ActiveCount++
		}
	}
	return report, nil
}

// Aggregate merges participant records that share a key and computes their
// totals from the sessions. Storage keeps one record per key, so merging only
// matters for data written before that was enforced.
func Aggregate(participants []*models.Participant, now time.Time) []models.ParticipantReport {
	byKey := make(map[models.ParticipantKey]*models.ParticipantReport)
	order := make([]models.ParticipantKey, 0, len(participants))

	for _, p := range participants {
		row, ok := byKey[p.Key]
		if !ok {
			row = &models.ParticipantReport{
				ParticipantUID: p.UID,
				Key:            p.Key.String(),
				Kind:           p.Key.Kind,
				DisplayName:    p.DisplayName,
				FirstJoinedAt:  p.FirstJoinedAt,
			}
			byKey[p.Key] = row
			order = append(order, p.Key)
		} else if p.FirstJoinedAt.Before(row.FirstJoinedAt) {
			row.ParticipantUID = p.UID
			row.FirstJoinedAt = p.FirstJoinedAt
			row.DisplayName = utils.FirstNonBlank(p.DisplayName, row.DisplayName)
		}
		row.Sessions = append(row.Sessions, p.Sessions...)
	}

	rows := make([]models.ParticipantReport, 0, len(order))
	for _, key := range order {
		row := byKey[key]
		sort.SliceStable(row.Sessions, func(i, j int) bool {
			return row.Sessions[i].JoinTime.Before(row.Sessions[j].JoinTime)
		})

		var lastLeft *time.Time
		for i := range row.Sessions {
			s := &row.Sessions[i]
			row.TotalDurationSeconds += s.DurationSeconds()
			row.LiveDurationSeconds += s.ElapsedSeconds(now)
			if s.IsOpen() {
				row.Active = true
				continue
			}
			lastLeft = utils.LaterTime(lastLeft, s.LeaveTime)
		}
		if !row.Active {
			row.LastLeftAt = lastLeft
		}
		if row.Sessions == nil {
			row.Sessions = []models.Session{}
		}
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FirstJoinedAt.Before(rows[j].FirstJoinedAt)
	})
	return rows
}

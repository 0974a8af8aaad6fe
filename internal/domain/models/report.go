// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// MeetingReport is the de-duplicated attendance view of a meeting.
type MeetingReport struct {
	MeetingUID   string              `json:"meeting_uid"`
	Title        string              `json:"title"`
	Status       MeetingStatus       `json:"status"`
	EndType      EndType             `json:"end_type,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	EndedAt      *time.Time          `json:"ended_at,omitempty"`
	ActiveCount  int                 `json:"active_count"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Participants []ParticipantReport `json:"participants"`
}

// ParticipantReport is one identity's row in a MeetingReport.
//
// TotalDurationSeconds counts closed sessions only, LiveDurationSeconds adds the
// time elapsed in sessions that are still open.
type ParticipantReport struct {
	ParticipantUID       string          `json:"participant_uid"`
	Key                  string          `json:"key"`
	Kind                 ParticipantKind `json:"kind"`
	DisplayName          string          `json:"display_name"`
	FirstJoinedAt        time.Time       `json:"first_joined_at"`
	LastLeftAt           *time.Time      `json:"last_left_at,omitempty"`
	Active               bool            `json:"active"`
	TotalDurationSeconds int64           `json:"total_duration_seconds"`
	LiveDurationSeconds  int64           `json:"live_duration_seconds"`
	Sessions             []Session       `json:"sessions"`
}

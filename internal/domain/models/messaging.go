// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the meeting session service publishes lifecycle events on.
const (
	// MeetingLiveSubject is published when a meeting transitions to live.
	// The subject is of the form: lfx.meeting-session.meeting_live
	MeetingLiveSubject = "lfx.meeting-session.meeting_live"

	// MeetingEndedSubject is published when a meeting ends, softly or by its host.
	// The subject is of the form: lfx.meeting-session.meeting_ended
	MeetingEndedSubject = "lfx.meeting-session.meeting_ended"

	// ParticipantJoinedSubject is published for every opened session.
	// The subject is of the form: lfx.meeting-session.participant_joined
	ParticipantJoinedSubject = "lfx.meeting-session.participant_joined"

	// ParticipantLeftSubject is published for every closed session.
	// The subject is of the form: lfx.meeting-session.participant_left
	ParticipantLeftSubject = "lfx.meeting-session.participant_left"
)

// NATS wildcard subjects that the meeting session service handles messages about.
const (
	// MeetingSessionAPIQueue is the queue group of the request/reply handlers.
	// The subject is of the form: lfx.meeting-session.queue
	MeetingSessionAPIQueue = "lfx.meeting-session.queue"
)

// NATS request/reply subjects served by the meeting session service.
const (
	// LeaveSessionSubject closes the session whose uid is the message payload.
	// The subject is of the form: lfx.meeting-session.leave
	LeaveSessionSubject = "lfx.meeting-session.leave"

	// GetReportSubject replies with the JSON report of the meeting whose uid is the payload.
	// The subject is of the form: lfx.meeting-session.get_report
	GetReportSubject = "lfx.meeting-session.get_report"
)

// MeetingEvent is the payload of the meeting lifecycle subjects.
type MeetingEvent struct {
	MeetingUID   string        `json:"meeting_uid"`
	WorkspaceUID string        `json:"workspace_uid,omitempty"`
	Status       MeetingStatus `json:"status"`
	EndType      EndType       `json:"end_type,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// ParticipantEvent is the payload of the participant subjects.
type ParticipantEvent struct {
	MeetingUID      string      `json:"meeting_uid"`
	ParticipantUID  string      `json:"participant_uid"`
	ParticipantKey  string      `json:"participant_key"`
	DisplayName     string      `json:"display_name,omitempty"`
	SessionUID      string      `json:"session_uid"`
	LeaveReason     LeaveReason `json:"leave_reason,omitempty"`
	DurationSeconds int64       `json:"duration_seconds,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

// NewMeetingEvent snapshots the meeting into an event payload.
func NewMeetingEvent(m *Meeting, at time.Time) MeetingEvent {
	return MeetingEvent{
		MeetingUID:   m.UID,
		WorkspaceUID: m.WorkspaceUID,
		Status:       m.Status,
		EndType:      m.EndType,
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
		Tags:         m.Tags(),
		OccurredAt:   at,
	}
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// LeaveReason records which signal closed a session.
type LeaveReason string

// Leave reasons.
const (
	LeaveReasonExplicit   LeaveReason = "explicit"
	LeaveReasonWebhook    LeaveReason = "webhook"
	LeaveReasonHostEnd    LeaveReason = "host_end"
	LeaveReasonTTLExpired LeaveReason = "ttl_expired"
)

// IsValid reports whether r is one of the known leave reasons.
func (r LeaveReason) IsValid() bool {
	switch r {
	case LeaveReasonExplicit, LeaveReasonWebhook, LeaveReasonHostEnd, LeaveReasonTTLExpired:
		return true
	}
	return false
}

// Session is a single join-to-leave interval of one participant. A session is
// closed at most once and never changes afterwards.
type Session struct {
	UID            string      `json:"uid"`
	ParticipantUID string      `json:"participant_uid"`
	JoinTime       time.Time   `json:"join_time"`
	LeaveTime      *time.Time  `json:"leave_time,omitempty"`
	LeaveReason    LeaveReason `json:"leave_reason,omitempty"`
}

// IsOpen reports whether the session has not been closed.
func (s *Session) IsOpen() bool {
	return s.LeaveTime == nil
}

// DurationSeconds is the whole number of seconds between join and leave.
// Open sessions have no duration yet.
func (s *Session) DurationSeconds() int64 {
	if s.LeaveTime == nil {
		return 0
	}
	return wholeSeconds(s.LeaveTime.Sub(s.JoinTime))
}

// ElapsedSeconds is the duration of a closed session, or the time elapsed
// until now for an open one.
func (s *Session) ElapsedSeconds(now time.Time) int64 {
	if s.LeaveTime != nil {
		return s.DurationSeconds()
	}
	return wholeSeconds(now.Sub(s.JoinTime))
}

func wholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// SessionRef locates the participant record that owns a session.
type SessionRef struct {
	SessionUID     string         `json:"session_uid"`
	MeetingUID     string         `json:"meeting_uid"`
	ParticipantUID string         `json:"participant_uid"`
	ParticipantKey ParticipantKey `json:"participant_key"`
	CreatedAt      time.Time      `json:"created_at"`
}

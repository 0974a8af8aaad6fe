// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

// Meeting lifecycle states.
const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusLive      MeetingStatus = "live"
	MeetingStatusEnded     MeetingStatus = "ended"
)

// EndType records how an ended meeting ended.
type EndType string

const (
	// EndTypeNone is used while the meeting has not ended.
	EndTypeNone EndType = ""
	// EndTypeSoft means the last participant left. The meeting re-opens on the next join.
	EndTypeSoft EndType = "soft"
	// EndTypeHard means the host ended the meeting. It is terminal.
	EndTypeHard EndType = "hard"
)

// Meeting is a scheduled conferencing room with a join code.
type Meeting struct {
	UID            string        `json:"uid"`
	WorkspaceUID   string        `json:"workspace_uid"`
	Title          string        `json:"title"`
	JoinCode       string        `json:"join_code"`
	Status         MeetingStatus `json:"status"`
	EndType        EndType       `json:"end_type,omitempty"`
	ScheduledStart time.Time     `json:"scheduled_start"`
	ScheduledEnd   time.Time     `json:"scheduled_end"`
	Recurrence     string        `json:"recurrence,omitempty"`
	Capacity       int           `json:"capacity,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	CreatorID      string        `json:"creator_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsHardEnded reports whether the meeting was ended by its host.
func (m *Meeting) IsHardEnded() bool {
	return m.Status == MeetingStatusEnded && m.EndType == EndTypeHard
}

// EffectiveCapacity returns the meeting's own capacity or def when none is set.
func (m *Meeting) EffectiveCapacity(def int) int {
	if m.Capacity > 0 {
		return m.Capacity
	}
	return def
}

// RoomName is the provider room backing the meeting.
func (m *Meeting) RoomName() string {
	return m.JoinCode
}

// RecurrenceRule parses the meeting's RRULE anchored at the scheduled start.
// It returns nil for non-recurring meetings.
func (m *Meeting) RecurrenceRule() (*rrule.RRule, error) {
	if m.Recurrence == "" {
		return nil, nil
	}

	rule, err := rrule.StrToRRule(m.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", m.Recurrence, err)
	}
	rule.DTStart(m.ScheduledStart)

	return rule, nil
}

// NextOccurrence returns the next scheduled start strictly after the given time.
// The second return value is false when there is none.
func (m *Meeting) NextOccurrence(after time.Time) (time.Time, bool) {
	rule, err := m.RecurrenceRule()
	if err != nil || rule == nil {
		if m.ScheduledStart.After(after) {
			return m.ScheduledStart, true
		}
		return time.Time{}, false
	}

	next := rule.After(after, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Tags returns the tags attached to lifecycle events about the meeting.
func (m *Meeting) Tags() []string {
	if m == nil {
		return nil
	}

	tags := []string{
		m.UID,
		fmt.Sprintf("meeting_uid:%s", m.UID),
		fmt.Sprintf("status:%s", m.Status),
	}
	if m.WorkspaceUID != "" {
		tags = append(tags, fmt.Sprintf("workspace_uid:%s", m.WorkspaceUID))
	}
	if m.EndType != EndTypeNone {
		tags = append(tags, fmt.Sprintf("end_type:%s", m.EndType))
	}
	return tags
}

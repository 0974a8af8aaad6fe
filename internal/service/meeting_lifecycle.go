// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

// MeetingLifecycle drives the scheduled -> live -> ended state machine. Each
// method reports whether the meeting changed and needs to be written back.
type MeetingLifecycle struct{}

// OnSessionOpened moves a scheduled or soft-ended meeting to live.
func (MeetingLifecycle) OnSessionOpened(m *models.Meeting, now time.Time) (bool, error) {
	if m.IsHardEnded() {
		return false, domain.NewMeetingEndedError("meeting was ended by the host")
	}
	if m.Status == models.MeetingStatusLive {
		return false, nil
	}

	m.Status = models.MeetingStatusLive
	m.EndType = models.EndTypeNone
	m.EndedAt = nil
	if m.StartedAt == nil {
		m.StartedAt = utils.TimePtr(now)
	}
	m.UpdatedAt = now
	return true, nil
}

// OnSessionClosed soft-ends a live meeting once nobody is active any more.
func (MeetingLifecycle) OnSessionClosed(m *models.Meeting, active int, now time.Time) bool {
	if m.Status != models.MeetingStatusLive || active > 0 {
		return false
	}

	m.Status = models.MeetingStatusEnded
	m.EndType = models.EndTypeSoft
	m.EndedAt = utils.TimePtr(now)
	m.UpdatedAt = now
	return true
}

// HardEnd ends the meeting for good. Ending a hard-ended meeting again changes nothing.
func (MeetingLifecycle) HardEnd(m *models.Meeting, now time.Time) bool {
	if m.IsHardEnded() {
		return false
	}

	m.Status = models.MeetingStatusEnded
	m.EndType = models.EndTypeHard
	m.EndedAt = utils.TimePtr(now)
	m.UpdatedAt = now
	return true
}

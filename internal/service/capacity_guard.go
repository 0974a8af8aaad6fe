// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// CapacityGuard enforces the active-participant ceiling of a meeting. It must
// run under the same meeting lock as the join it admits.
type CapacityGuard struct {
	defaultCapacity int
}

// NewCapacityGuard creates a guard using defaultCapacity for meetings without their own.
func NewCapacityGuard(defaultCapacity int) *CapacityGuard {
	return &CapacityGuard{defaultCapacity: defaultCapacity}
}

// Limit is the ceiling that applies to the meeting.
func (g *CapacityGuard) Limit(meeting *models.Meeting) int {
	return meeting.EffectiveCapacity(g.defaultCapacity)
}

// Check rejects the join of key when the meeting is full. A participant that
// is already active opens another session without using a new seat.
func (g *CapacityGuard) Check(meeting *models.Meeting, participants []*models.Participant, key models.ParticipantKey) error {
	active := 0
	for _, p := range participants {
		if !p.IsActive() {
			continue
		}
		if p.Key == key {
			return nil
		}
		active++
	}

	limit := g.Limit(meeting)
	if limit > 0 && active >= limit {
		return domain.NewCapacityExceededError(meeting.UID, limit, active)
	}
	return nil
}

// ActiveCount counts the distinct participants with at least one open session.
func ActiveCount(participants []*models.Participant) int {
	n := 0
	for _, p := range participants {
		if p.IsActive() {
			n++
		}
	}
	return n
}

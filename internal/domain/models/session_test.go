// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_DurationSeconds(t *testing.T) {
	join := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		leave *time.Time
		want  int64
	}{
		{name: "open", leave: nil, want: 0},
		{name: "truncated to whole seconds", leave: timePtr(join.Add(61*time.Second + 900*time.Millisecond)), want: 61},
		{name: "leave before join clamps to zero", leave: timePtr(join.Add(-time.Second)), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{JoinTime: join, LeaveTime: tt.leave}
			assert.Equal(t, tt.want, s.DurationSeconds())
		})
	}
}

func TestSession_ElapsedSeconds(t *testing.T) {
	join := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := Session{JoinTime: join}

	assert.True(t, s.IsOpen())
	assert.Equal(t, int64(300), s.ElapsedSeconds(join.Add(5*time.Minute)))

	s.LeaveTime = timePtr(join.Add(time.Minute))
	assert.Equal(t, int64(60), s.ElapsedSeconds(join.Add(5*time.Minute)))
}

func TestLeaveReason_IsValid(t *testing.T) {
	for _, r := range []LeaveReason{LeaveReasonExplicit, LeaveReasonWebhook, LeaveReasonHostEnd, LeaveReasonTTLExpired} {
		assert.True(t, r.IsValid(), string(r))
	}
	assert.False(t, LeaveReason("kicked").IsValid())
}

func timePtr(t time.Time) *time.Time {
	return &t
}

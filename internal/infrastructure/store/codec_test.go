// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = NewCodec(CodecMsgpack)
	require.NoError(t, err)
	assert.Equal(t, CodecMsgpack, c.Name())

	_, err = NewCodec("xml")
	assert.Error(t, err)
}

func TestCodecs_PreserveParticipant(t *testing.T) {
	joined := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	left := joined.Add(42 * time.Second)
	participant := &models.Participant{
		UID:                  "p1",
		MeetingUID:           "m1",
		Key:                  models.UserKey("alice"),
		DisplayName:          "Alice",
		FirstJoinedAt:        joined,
		LastLeftAt:           &left,
		TotalDurationSeconds: 42,
		Sessions: []models.Session{
			{UID: "s1", ParticipantUID: "p1", JoinTime: joined, LeaveTime: &left, LeaveReason: models.LeaveReasonWebhook},
		},
	}

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(participant)
			require.NoError(t, err)

			var decoded models.Participant
			require.NoError(t, codec.Unmarshal(data, &decoded))

			assert.Equal(t, participant.Key, decoded.Key)
			assert.Equal(t, participant.TotalDurationSeconds, decoded.TotalDurationSeconds)
			require.Len(t, decoded.Sessions, 1)
			assert.True(t, decoded.Sessions[0].LeaveTime.Equal(left))
			assert.Equal(t, models.LeaveReasonWebhook, decoded.Sessions[0].LeaveReason)
		})
	}
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

func newTestMeeting(joinCode string) *models.Meeting {
	now := time.Now().UTC()
	return &models.Meeting{
		UID:            uuid.NewString(),
		WorkspaceUID:   "ws-1",
		Title:          "Standup",
		JoinCode:       joinCode,
		Status:         models.MeetingStatusScheduled,
		ScheduledStart: now.Add(time.Hour),
		ScheduledEnd:   now.Add(2 * time.Hour),
		CreatorID:      "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestNatsMeetingRepository(t *testing.T) {
	ctx := context.Background()
	meetingsKV := NewMemoryKeyValue(KVStoreNameMeetings)
	codesKV := NewMemoryKeyValue(KVStoreNameJoinCodes)
	repo := NewNatsMeetingRepository(meetingsKV, codesKV, nil)

	assert.True(t, repo.IsReady(ctx))

	meeting := newTestMeeting("3mJr7AoUXx2Wqd")
	require.NoError(t, repo.CreateMeeting(ctx, meeting))

	t.Run("get by uid", func(t *testing.T) {
		got, revision, err := repo.GetMeetingWithRevision(ctx, meeting.UID)
		require.NoError(t, err)
		assert.NotZero(t, revision)
		assert.Equal(t, meeting.Title, got.Title)
	})

	t.Run("get by join code", func(t *testing.T) {
		got, err := repo.GetMeetingByJoinCode(ctx, meeting.JoinCode)
		require.NoError(t, err)
		assert.Equal(t, meeting.UID, got.UID)
	})

	t.Run("unknown join code", func(t *testing.T) {
		_, err := repo.GetMeetingByJoinCode(ctx, "nope")
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("duplicate join code", func(t *testing.T) {
		other := newTestMeeting(meeting.JoinCode)
		err := repo.CreateMeeting(ctx, other)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))

		_, err = repo.GetMeeting(ctx, other.UID)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("update with revision", func(t *testing.T) {
		got, revision, err := repo.GetMeetingWithRevision(ctx, meeting.UID)
		require.NoError(t, err)

		got.Status = models.MeetingStatusLive
		require.NoError(t, repo.UpdateMeeting(ctx, got, revision))

		got.Status = models.MeetingStatusEnded
		err = repo.UpdateMeeting(ctx, got, revision)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})

	t.Run("list", func(t *testing.T) {
		all, err := repo.ListMeetings(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, models.MeetingStatusLive, all[0].Status)
	})
}

func TestNatsMeetingRepository_ReleasesJoinCodeOnFailure(t *testing.T) {
	ctx := context.Background()
	meetingsKV := NewMemoryKeyValue(KVStoreNameMeetings)
	codesKV := NewMemoryKeyValue(KVStoreNameJoinCodes)
	repo := NewNatsMeetingRepository(meetingsKV, codesKV, nil)

	meeting := newTestMeeting("code1")
	// occupy the meeting key so the second write fails
	_, err := meetingsKV.Create(ctx, meeting.UID, []byte("{}"))
	require.NoError(t, err)

	err = repo.CreateMeeting(ctx, meeting)
	require.Error(t, err)
	assert.Equal(t, 0, codesKV.Len(), "join code must be released")
}

func TestNatsParticipantRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsParticipantRepository(NewMemoryKeyValue(KVStoreNameParticipants), MsgpackCodec{})

	now := time.Now().UTC()
	alice := &models.Participant{UID: "p1", MeetingUID: "m1", Key: models.UserKey("alice"), FirstJoinedAt: now}
	bob := &models.Participant{UID: "p2", MeetingUID: "m1", Key: models.UserKey("bob"), FirstJoinedAt: now}
	other := &models.Participant{UID: "p3", MeetingUID: "m2", Key: models.UserKey("alice"), FirstJoinedAt: now}

	for _, p := range []*models.Participant{alice, bob, other} {
		require.NoError(t, repo.CreateParticipant(ctx, p))
	}

	t.Run("one record per identity", func(t *testing.T) {
		dup := &models.Participant{UID: "p4", MeetingUID: "m1", Key: models.UserKey("alice")}
		err := repo.CreateParticipant(ctx, dup)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})

	t.Run("get and update", func(t *testing.T) {
		got, revision, err := repo.GetParticipant(ctx, "m1", models.UserKey("alice"))
		require.NoError(t, err)
		assert.Equal(t, "p1", got.UID)

		got.Sessions = append(got.Sessions, models.Session{UID: "s1", ParticipantUID: "p1", JoinTime: now})
		require.NoError(t, repo.UpdateParticipant(ctx, got, revision))

		reloaded, _, err := repo.GetParticipant(ctx, "m1", models.UserKey("alice"))
		require.NoError(t, err)
		require.Len(t, reloaded.Sessions, 1)
		assert.True(t, reloaded.Sessions[0].IsOpen())
	})

	t.Run("missing participant", func(t *testing.T) {
		_, _, err := repo.GetParticipant(ctx, "m1", models.UserKey("carol"))
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("list is scoped to the meeting", func(t *testing.T) {
		m1, err := repo.ListParticipants(ctx, "m1")
		require.NoError(t, err)
		assert.Len(t, m1, 2)

		m2, err := repo.ListParticipants(ctx, "m2")
		require.NoError(t, err)
		require.Len(t, m2, 1)
		assert.Equal(t, "p3", m2[0].UID)
	})

	t.Run("delete frees the identity", func(t *testing.T) {
		require.NoError(t, repo.DeleteParticipant(ctx, "m1", models.UserKey("bob")))
		_, _, err := repo.GetParticipant(ctx, "m1", models.UserKey("bob"))
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

		err = repo.DeleteParticipant(ctx, "m1", models.UserKey("bob"))
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

		again := &models.Participant{UID: "p5", MeetingUID: "m1", Key: models.UserKey("bob")}
		assert.NoError(t, repo.CreateParticipant(ctx, again))
	})
}

func TestNatsSessionIndex(t *testing.T) {
	ctx := context.Background()
	index := NewNatsSessionIndex(NewMemoryKeyValue(KVStoreNameSessionRefs), nil)

	ref := &models.SessionRef{
		SessionUID:     uuid.NewString(),
		MeetingUID:     "m1",
		ParticipantUID: "p1",
		ParticipantKey: models.UserKey("alice"),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, index.PutSessionRef(ctx, ref))

	got, err := index.GetSessionRef(ctx, ref.SessionUID)
	require.NoError(t, err)
	assert.Equal(t, ref.ParticipantKey, got.ParticipantKey)
	assert.Equal(t, "m1", got.MeetingUID)

	_, err = index.GetSessionRef(ctx, uuid.NewString())
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/store"
)

const hostID = "host-user"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	subject     string
	meeting     models.MeetingEvent
	participant models.ParticipantEvent
}

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishMeetingEvent(_ context.Context, subject string, event models.MeetingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject: subject, meeting: event})
	return nil
}

func (p *recordingPublisher) PublishParticipantEvent(_ context.Context, subject string, event models.ParticipantEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject: subject, participant: event})
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.subject == subject {
			n++
		}
	}
	return n
}

type fixture struct {
	svc       *MeetingSessionService
	rooms     *mocks.MockRoomProvider
	verifier  *mocks.MockWebhookVerifier
	publisher *recordingPublisher
	clock     *fakeClock
	ctx       context.Context

	meetingsKV     *store.MemoryKeyValue
	participantsKV *store.MemoryKeyValue
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, DefaultServiceConfig())
}

func newFixtureWithConfig(t *testing.T, config ServiceConfig) *fixture {
	t.Helper()

	rooms := &mocks.MockRoomProvider{}
	rooms.On("EnsureRoom", mock.Anything, mock.Anything).Return(nil).Maybe()
	rooms.On("IssueAccessToken", mock.Anything, mock.Anything).Return("room-token", nil).Maybe()
	rooms.On("DeleteRoom", mock.Anything, mock.Anything).Return(nil).Maybe()

	verifier := &mocks.MockWebhookVerifier{}
	publisher := &recordingPublisher{}
	clock := newFakeClock()
	meetingsKV := store.NewMemoryKeyValue(store.KVStoreNameMeetings)
	participantsKV := store.NewMemoryKeyValue(store.KVStoreNameParticipants)

	svc := NewMeetingSessionService(Dependencies{
		Meetings: store.NewNatsMeetingRepository(
			meetingsKV,
			store.NewMemoryKeyValue(store.KVStoreNameJoinCodes),
			nil,
		),
		Participants: store.NewNatsParticipantRepository(participantsKV, nil),
		Sessions:     store.NewNatsSessionIndex(store.NewMemoryKeyValue(store.KVStoreNameSessionRefs), nil),
		Rooms:        rooms,
		Webhooks:     verifier,
		Events:       publisher,
	}, config)
	svc.now = clock.Now

	return &fixture{
		svc:       svc,
		rooms:     rooms,
		verifier:  verifier,
		publisher: publisher,
		clock:     clock,
		ctx:       context.Background(),

		meetingsKV:     meetingsKV,
		participantsKV: participantsKV,
	}
}

func (f *fixture) createMeeting(t *testing.T, capacity int) *models.Meeting {
	t.Helper()
	meeting, err := f.svc.CreateMeeting(f.ctx, CreateMeetingRequest{
		WorkspaceUID:   "ws-1",
		Title:          "Weekly sync",
		ScheduledStart: f.clock.Now().Add(time.Hour),
		ScheduledEnd:   f.clock.Now().Add(2 * time.Hour),
		Capacity:       capacity,
	}, hostID)
	require.NoError(t, err)
	return meeting
}

func (f *fixture) joinUser(t *testing.T, m *models.Meeting, userID string) *JoinResult {
	t.Helper()
	res, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: userID})
	require.NoError(t, err)
	return res
}

func (f *fixture) meeting(t *testing.T, uid string) *models.Meeting {
	t.Helper()
	m, err := f.svc.deps.Meetings.GetMeeting(f.ctx, uid)
	require.NoError(t, err)
	return m
}

func (f *fixture) participants(t *testing.T, meetingUID string) []*models.Participant {
	t.Helper()
	ps, err := f.svc.deps.Participants.ListParticipants(f.ctx, meetingUID)
	require.NoError(t, err)
	return ps
}

func (f *fixture) participant(t *testing.T, meetingUID string, key models.ParticipantKey) *models.Participant {
	t.Helper()
	p, _, err := f.svc.deps.Participants.GetParticipant(f.ctx, meetingUID, key)
	require.NoError(t, err)
	return p
}

// requireDurationsConserved checks that every participant's running total
// equals the sum of its closed session durations.
func requireDurationsConserved(t *testing.T, participants []*models.Participant) {
	t.Helper()
	for _, p := range participants {
		require.Equal(t, closedSeconds(p), p.TotalDurationSeconds, "participant %s", p.Key)
	}
}

func closedSeconds(p *models.Participant) int64 {
	var total int64
	for _, s := range p.Sessions {
		total += s.DurationSeconds()
	}
	return total
}

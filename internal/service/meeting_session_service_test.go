// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

func TestCreateMeeting(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(time.Hour)

	tests := []struct {
		name     string
		req      CreateMeetingRequest
		caller   string
		wantType domain.ErrorType
		wantErr  bool
	}{
		{
			name:   "valid meeting",
			req:    CreateMeetingRequest{Title: "Planning", ScheduledStart: start, ScheduledEnd: start.Add(time.Hour)},
			caller: hostID,
		},
		{
			name:   "weekly recurrence",
			req:    CreateMeetingRequest{Title: "Weekly", ScheduledStart: start, Recurrence: "FREQ=WEEKLY;COUNT=4"},
			caller: hostID,
		},
		{
			name:     "anonymous caller",
			req:      CreateMeetingRequest{Title: "Planning", ScheduledStart: start},
			wantErr:  true,
			wantType: domain.ErrorTypeForbidden,
		},
		{
			name:     "missing title",
			req:      CreateMeetingRequest{ScheduledStart: start},
			caller:   hostID,
			wantErr:  true,
			wantType: domain.ErrorTypeValidation,
		},
		{
			name:     "end before start",
			req:      CreateMeetingRequest{Title: "Planning", ScheduledStart: start, ScheduledEnd: start.Add(-time.Minute)},
			caller:   hostID,
			wantErr:  true,
			wantType: domain.ErrorTypeValidation,
		},
		{
			name:     "too long",
			req:      CreateMeetingRequest{Title: "Planning", ScheduledStart: start, ScheduledEnd: start.Add(11 * time.Hour)},
			caller:   hostID,
			wantErr:  true,
			wantType: domain.ErrorTypeValidation,
		},
		{
			name:     "capacity out of range",
			req:      CreateMeetingRequest{Title: "Planning", ScheduledStart: start, Capacity: 5000},
			caller:   hostID,
			wantErr:  true,
			wantType: domain.ErrorTypeValidation,
		},
		{
			name:     "bad recurrence",
			req:      CreateMeetingRequest{Title: "Planning", ScheduledStart: start, Recurrence: "FREQ=SOMETIMES"},
			caller:   hostID,
			wantErr:  true,
			wantType: domain.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meeting, err := f.svc.CreateMeeting(f.ctx, tt.req, tt.caller)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantType, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.MeetingStatusScheduled, meeting.Status)
			assert.NotEmpty(t, meeting.JoinCode)
			assert.Equal(t, tt.caller, meeting.CreatorID)

			details, err := f.svc.GetMeeting(f.ctx, meeting.UID)
			require.NoError(t, err)
			assert.Equal(t, meeting.JoinCode, details.Meeting.JoinCode)
			require.NotNil(t, details.NextOccurrence)
			assert.True(t, start.Equal(*details.NextOccurrence))
		})
	}
}

func TestCreateMeeting_RequiresWorkspaceMembership(t *testing.T) {
	f := newFixture(t)
	membership := &mocks.MockMembershipChecker{}
	membership.On("IsMember", mock.Anything, "ws-1", "outsider").Return(false, nil)
	f.svc.deps.Membership = membership

	_, err := f.svc.CreateMeeting(f.ctx, CreateMeetingRequest{
		WorkspaceUID:   "ws-1",
		Title:          "Planning",
		ScheduledStart: f.clock.Now(),
	}, "outsider")
	assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))
	membership.AssertExpectations(t)
}

func TestGetMeeting_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetMeeting(f.ctx, "not-a-uuid")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	_, err = f.svc.GetMeeting(f.ctx, "0f3b6a3e-8a54-4c1d-9b36-0f1c8a3e2d11")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

// Scenario A: join, explicit leave soft-ends the meeting, joining again brings it back.
func TestScenario_SoftEndAndRejoin(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	joined := f.joinUser(t, m, "user-u")
	live := f.meeting(t, m.UID)
	assert.Equal(t, models.MeetingStatusLive, live.Status)
	require.NotNil(t, live.StartedAt)
	startedAt := *live.StartedAt

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.Leave(f.ctx, joined.SessionUID))

	ended := f.meeting(t, m.UID)
	assert.Equal(t, models.MeetingStatusEnded, ended.Status)
	assert.Equal(t, models.EndTypeSoft, ended.EndType)
	require.NotNil(t, ended.EndedAt)

	f.clock.Advance(time.Minute)
	f.joinUser(t, m, "user-u")

	again := f.meeting(t, m.UID)
	assert.Equal(t, models.MeetingStatusLive, again.Status)
	assert.Nil(t, again.EndedAt)
	assert.Equal(t, models.EndTypeNone, again.EndType)
	assert.True(t, startedAt.Equal(*again.StartedAt))

	assert.Len(t, f.participants(t, m.UID), 1)
	f.svc.Wait()
	assert.Equal(t, 2, f.publisher.count(models.MeetingLiveSubject))
	assert.Equal(t, 1, f.publisher.count(models.MeetingEndedSubject))
}

// Scenario B: one guest in two tabs, a leave and a late duplicate webhook.
func TestScenario_GuestTabsAndDuplicateWebhook(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	tab1, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Alex", GuestToken: guestToken})
	require.NoError(t, err)
	tab2, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Alex", GuestToken: guestToken})
	require.NoError(t, err)

	assert.Equal(t, tab1.ParticipantUID, tab2.ParticipantUID)
	assert.NotEqual(t, tab1.SessionUID, tab2.SessionUID)
	assert.Equal(t, guestToken, tab1.GuestToken)

	key := models.GuestKey(guestToken)
	p := f.participant(t, m.UID, key)
	assert.Equal(t, 2, p.OpenSessionCount())

	f.clock.Advance(3 * time.Minute)
	require.NoError(t, f.svc.Leave(f.ctx, tab1.SessionUID))

	report, err := f.svc.GetReport(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	require.Len(t, report.Participants, 1)
	assert.True(t, report.Participants[0].Active)
	assert.Equal(t, 1, report.ActiveCount)
	assert.Equal(t, models.MeetingStatusLive, f.meeting(t, m.UID).Status)

	body := []byte(fmt.Sprintf(`{"event":"participant_left","room":{"name":%q},"participant":{"identity":%q}}`, m.JoinCode, tab1.Identity))
	f.verifier.On("Verify", body, mock.Anything).Return(nil).Once()
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))

	p = f.participant(t, m.UID, key)
	assert.Equal(t, 1, p.OpenSessionCount())
	idx := p.SessionIndex(tab1.SessionUID)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, models.LeaveReasonExplicit, p.Sessions[idx].LeaveReason)
	assert.Equal(t, int64(180), p.TotalDurationSeconds)
	f.verifier.AssertExpectations(t)
}

// Scenario C: the 51st concurrent participant is turned away without a trace.
func TestScenario_CapacityExceeded(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 0)

	for i := 0; i < 50; i++ {
		f.joinUser(t, m, fmt.Sprintf("user-%02d", i))
	}

	_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "user-51"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeCapacityExceeded, domain.GetErrorType(err))

	var capErr *domain.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 50, capErr.Limit)
	assert.Equal(t, 50, capErr.Active)

	assert.Len(t, f.participants(t, m.UID), 50)
	_, _, err = f.svc.deps.Participants.GetParticipant(f.ctx, m.UID, models.UserKey("user-51"))
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	// An active participant opening another tab does not need a new seat.
	f.joinUser(t, m, "user-07")
}

// Scenario D: the host ends the meeting with three people inside.
func TestScenario_HardEnd(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	f.joinUser(t, m, "a")
	f.clock.Advance(time.Minute)
	f.joinUser(t, m, "b")
	f.clock.Advance(time.Minute)
	_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Guest"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	_, err = f.svc.EndMeeting(f.ctx, m.UID, "a")
	assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))

	endedAt := f.clock.Now()
	ended, err := f.svc.EndMeeting(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	assert.Equal(t, models.EndTypeHard, ended.EndType)
	assert.True(t, endedAt.Equal(*ended.EndedAt))

	participants := f.participants(t, m.UID)
	require.Len(t, participants, 3)
	for _, p := range participants {
		assert.False(t, p.IsActive())
		for _, s := range p.Sessions {
			assert.True(t, endedAt.Equal(*s.LeaveTime))
			assert.Equal(t, models.LeaveReasonHostEnd, s.LeaveReason)
		}
	}
	requireDurationsConserved(t, participants)
	assert.Equal(t, int64(3*60), f.participant(t, m.UID, models.UserKey("a")).TotalDurationSeconds)

	_, err = f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "a"})
	assert.Equal(t, domain.ErrorTypeMeetingEnded, domain.GetErrorType(err))

	again, err := f.svc.EndMeeting(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	assert.True(t, endedAt.Equal(*again.EndedAt))

	f.svc.Wait()
	f.rooms.AssertCalled(t, "DeleteRoom", mock.Anything, m.JoinCode)
	f.rooms.AssertNumberOfCalls(t, "DeleteRoom", 1)
	assert.Equal(t, 3, f.publisher.count(models.ParticipantLeftSubject))
	assert.Equal(t, 1, f.publisher.count(models.MeetingEndedSubject))
}

func TestIdempotentClose_MixedSignals(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)
	joined := f.joinUser(t, m, "alice")
	f.joinUser(t, m, "bob")

	f.clock.Advance(42 * time.Second)

	body := []byte(fmt.Sprintf(`{"event":"participant_left","room":{"name":%q},"participant":{"identity":%q}}`, m.JoinCode, joined.Identity))
	f.verifier.On("Verify", body, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Leave(f.ctx, joined.SessionUID))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))
		}()
	}
	wg.Wait()

	p := f.participant(t, m.UID, models.UserKey("alice"))
	require.Len(t, p.Sessions, 1)
	assert.NotNil(t, p.Sessions[0].LeaveTime)
	assert.Equal(t, int64(42), p.TotalDurationSeconds)

	f.svc.Wait()
	assert.Equal(t, 1, f.publisher.count(models.ParticipantLeftSubject))
}

func TestCapacityInvariant_ConcurrentJoins(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: fmt.Sprintf("user-%d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case domain.GetErrorType(err) == domain.ErrorTypeCapacityExceeded:
				rejected++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, admitted)
	assert.Equal(t, 20, rejected)
	assert.Equal(t, 5, ActiveCount(f.participants(t, m.UID)))
}

func TestNoDuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "same-user"})
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, f.svc.Leave(f.ctx, res.SessionUID))
		}()
	}
	wg.Wait()
	f.joinUser(t, m, "same-user")

	participants := f.participants(t, m.UID)
	require.Len(t, participants, 1)
	assert.Len(t, participants[0].Sessions, 9)
	assert.Equal(t, 1, participants[0].OpenSessionCount())
	requireDurationsConserved(t, participants)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)
	joined := f.joinUser(t, m, "alice")

	t.Run("malformed session id", func(t *testing.T) {
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(f.svc.Leave(f.ctx, "nope")))
	})
	t.Run("unknown session id", func(t *testing.T) {
		err := f.svc.Leave(f.ctx, "6f0c7c3e-53a5-4a0f-8a8e-5b9e0b8f2a01")
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
	t.Run("unknown leave reason", func(t *testing.T) {
		_, err := f.svc.Reconciler().LeaveSession(f.ctx, joined.SessionUID, models.LeaveReason("kicked"))
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		assert.True(t, f.participant(t, m.UID, models.UserKey("alice")).IsActive())
	})
	t.Run("leaving twice succeeds", func(t *testing.T) {
		require.NoError(t, f.svc.Leave(f.ctx, joined.SessionUID))
		require.NoError(t, f.svc.Leave(f.ctx, joined.SessionUID))
	})
}

func TestJoin_Errors(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	tests := []struct {
		name     string
		req      JoinRequest
		wantType domain.ErrorType
	}{
		{name: "invalid join code", req: JoinRequest{JoinCode: "0OIl", UserID: "a"}, wantType: domain.ErrorTypeNotFound},
		{name: "unknown join code", req: JoinRequest{JoinCode: "3mJr7AoUXx2Wqd", UserID: "a"}, wantType: domain.ErrorTypeNotFound},
		{name: "no identity", req: JoinRequest{JoinCode: m.JoinCode}, wantType: domain.ErrorTypeValidation},
		{name: "bad guest token", req: JoinRequest{JoinCode: m.JoinCode, GuestName: "G", GuestToken: "xyz"}, wantType: domain.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Join(f.ctx, tt.req)
			assert.Equal(t, tt.wantType, domain.GetErrorType(err))
		})
	}
}

func TestJoin_HostAndGuestTokens(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	host := f.joinUser(t, m, hostID)
	assert.True(t, host.IsHost)
	assert.Empty(t, host.GuestToken)
	assert.Equal(t, "room-token", host.AccessToken)
	assert.Equal(t, models.ProviderIdentity(models.UserKey(hostID), host.SessionUID), host.Identity)

	guest, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Alex"})
	require.NoError(t, err)
	assert.False(t, guest.IsHost)
	assert.NotEmpty(t, guest.GuestToken)

	replay, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Alex", GuestToken: guest.GuestToken})
	require.NoError(t, err)
	assert.Equal(t, guest.ParticipantUID, replay.ParticipantUID)
}

func TestJoin_TokenFailureClosesSession(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	rooms := &mocks.MockRoomProvider{}
	rooms.On("EnsureRoom", mock.Anything, m.JoinCode).Return(nil)
	rooms.On("IssueAccessToken", mock.Anything, mock.Anything).Return("", domain.NewUnavailableError("provider down"))
	f.svc.deps.Rooms = rooms

	_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "alice"})
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))

	p := f.participant(t, m.UID, models.UserKey("alice"))
	assert.False(t, p.IsActive())
	rooms.AssertExpectations(t)
}

func TestJoin_StoreFailureLeavesNoSession(t *testing.T) {
	t.Run("first join of a new participant", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(t, 1)

		f.meetingsKV.FailNextUpdates(errors.New("connection reset"))
		_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "alice"})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))

		assert.Empty(t, f.participants(t, m.UID))
		assert.Equal(t, models.MeetingStatusScheduled, f.meeting(t, m.UID).Status)
		f.rooms.AssertNotCalled(t, "IssueAccessToken", mock.Anything, mock.Anything)

		// The seat is free for the next caller.
		bob := f.joinUser(t, m, "bob")
		assert.NotEmpty(t, bob.AccessToken)
		live := f.meeting(t, m.UID)
		assert.Equal(t, models.MeetingStatusLive, live.Status)
		require.NotNil(t, live.StartedAt)
	})

	t.Run("rejoin of a returning participant", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(t, 1)
		first := f.joinUser(t, m, "alice")
		f.clock.Advance(time.Minute)
		require.NoError(t, f.svc.Leave(f.ctx, first.SessionUID))
		require.Equal(t, models.MeetingStatusEnded, f.meeting(t, m.UID).Status)

		f.clock.Advance(time.Minute)
		f.meetingsKV.FailNextUpdates(errors.New("connection reset"))
		_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "alice"})
		require.Error(t, err)

		p := f.participant(t, m.UID, models.UserKey("alice"))
		require.Len(t, p.Sessions, 1)
		assert.False(t, p.IsActive())
		assert.Equal(t, int64(60), p.TotalDurationSeconds)
		assert.Equal(t, models.MeetingStatusEnded, f.meeting(t, m.UID).Status)

		f.joinUser(t, m, "alice")
		assert.Equal(t, models.MeetingStatusLive, f.meeting(t, m.UID).Status)
	})
}

func TestLeave_StoreFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)
	joined := f.joinUser(t, m, "alice")
	f.clock.Advance(time.Minute)

	f.meetingsKV.FailNextUpdates(errors.New("connection reset"))
	err := f.svc.Leave(f.ctx, joined.SessionUID)
	require.Error(t, err)

	p := f.participant(t, m.UID, models.UserKey("alice"))
	assert.True(t, p.IsActive(), "a close that could not settle the meeting is taken back")
	assert.Zero(t, p.TotalDurationSeconds)
	assert.Equal(t, models.MeetingStatusLive, f.meeting(t, m.UID).Status)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.Leave(f.ctx, joined.SessionUID))
	ended := f.meeting(t, m.UID)
	assert.Equal(t, models.MeetingStatusEnded, ended.Status)
	assert.Equal(t, models.EndTypeSoft, ended.EndType)
	requireDurationsConserved(t, f.participants(t, m.UID))
	assert.Equal(t, int64(120), f.participant(t, m.UID, models.UserKey("alice")).TotalDurationSeconds)
}

func TestJoin_RejectedJoinSkipsProvider(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 1)
	f.joinUser(t, m, "alice")

	_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "bob"})
	assert.Equal(t, domain.ErrorTypeCapacityExceeded, domain.GetErrorType(err))
	f.rooms.AssertNumberOfCalls(t, "EnsureRoom", 1)

	_, err = f.svc.EndMeeting(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	_, err = f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "carol"})
	assert.Equal(t, domain.ErrorTypeMeetingEnded, domain.GetErrorType(err))
	f.rooms.AssertNumberOfCalls(t, "EnsureRoom", 1)
}

func TestJoin_MembershipGate(t *testing.T) {
	config := DefaultServiceConfig()
	config.JoinRequiresMembership = true
	f := newFixtureWithConfig(t, config)
	m := f.createMeeting(t, 50)

	membership := &mocks.MockMembershipChecker{}
	membership.On("IsMember", mock.Anything, "ws-1", "member").Return(true, nil)
	membership.On("IsMember", mock.Anything, "ws-1", "stranger").Return(false, nil)
	f.svc.deps.Membership = membership

	f.joinUser(t, m, "member")
	_, err := f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, UserID: "stranger"})
	assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))

	_, err = f.svc.Join(f.ctx, JoinRequest{JoinCode: m.JoinCode, GuestName: "Guest"})
	assert.NoError(t, err, "guests are not gated")
}

func TestReceiveProviderWebhook(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)
	first := f.joinUser(t, m, "alice")
	f.clock.Advance(time.Second)
	f.joinUser(t, m, "alice")

	t.Run("bad signature", func(t *testing.T) {
		body := []byte(`{"event":"participant_left"}`)
		f.verifier.On("Verify", body, mock.Anything).Return(domain.NewSignatureError("bad")).Once()
		err := f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{})
		assert.Equal(t, domain.ErrorTypeSignature, domain.GetErrorType(err))
	})

	t.Run("malformed payload is swallowed", func(t *testing.T) {
		body := []byte(`{"event":"participant_left","room":{"name":"x"}}`)
		f.verifier.On("Verify", body, mock.Anything).Return(nil).Once()
		assert.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))
	})

	t.Run("unknown room is swallowed", func(t *testing.T) {
		body := []byte(`{"event":"participant_left","room":{"name":"3mJr7AoUXx2Wqd"},"participant":{"identity":"user:alice"}}`)
		f.verifier.On("Verify", body, mock.Anything).Return(nil).Once()
		assert.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))
	})

	t.Run("identity without session closes the oldest open session", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"event":"participant_left","room":{"name":%q},"participant":{"identity":"user:alice"}}`, m.JoinCode))
		f.verifier.On("Verify", body, mock.Anything).Return(nil).Once()
		require.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))

		p := f.participant(t, m.UID, models.UserKey("alice"))
		assert.Equal(t, 1, p.OpenSessionCount())
		assert.False(t, p.Sessions[p.SessionIndex(first.SessionUID)].IsOpen())
	})

	t.Run("other events are ignored", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"event":"room_started","room":{"name":%q}}`, m.JoinCode))
		f.verifier.On("Verify", body, mock.Anything).Return(nil).Once()
		assert.NoError(t, f.svc.ReceiveProviderWebhook(f.ctx, body, http.Header{}))
	})
}

func TestExpireStaleSessions(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	stale := f.joinUser(t, m, "stale")
	f.clock.Advance(11 * time.Hour)
	fresh := f.joinUser(t, m, "fresh")
	f.clock.Advance(2 * time.Hour)

	sweeper := NewSessionSweeper(f.svc.Reconciler(), 12*time.Hour, time.Minute)
	assert.Equal(t, 1, sweeper.Sweep(f.ctx))
	assert.Equal(t, 0, sweeper.Sweep(f.ctx))

	p := f.participant(t, m.UID, models.UserKey("stale"))
	require.Len(t, p.Sessions, 1)
	assert.Equal(t, stale.SessionUID, p.Sessions[0].UID)
	assert.Equal(t, models.LeaveReasonTTLExpired, p.Sessions[0].LeaveReason)
	assert.Equal(t, int64(13*3600), p.TotalDurationSeconds)

	assert.True(t, f.participant(t, m.UID, models.UserKey("fresh")).IsActive())
	assert.Equal(t, models.MeetingStatusLive, f.meeting(t, m.UID).Status)

	require.NoError(t, f.svc.Leave(f.ctx, fresh.SessionUID))
	assert.Equal(t, models.EndTypeSoft, f.meeting(t, m.UID).EndType)

	disabled := NewSessionSweeper(f.svc.Reconciler(), 0, time.Minute)
	assert.False(t, disabled.Enabled())
}

func TestDurationConservation_RandomWalk(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)

	users := []string{"a", "b", "c"}
	open := map[string][]string{}
	for step := 0; step < 60; step++ {
		user := users[step%len(users)]
		f.clock.Advance(time.Duration(step%7+1) * 1500 * time.Millisecond)

		switch {
		case step%5 == 4:
			_, err := f.svc.Reconciler().LeaveByProviderIdentity(f.ctx, m.JoinCode, models.UserKey(user).String())
			require.NoError(t, err)
		case len(open[user]) > 0 && step%2 == 1:
			require.NoError(t, f.svc.Leave(f.ctx, open[user][0]))
			open[user] = open[user][1:]
		default:
			res := f.joinUser(t, m, user)
			open[user] = append(open[user], res.SessionUID)
		}
		requireDurationsConserved(t, f.participants(t, m.UID))
	}

	_, err := f.svc.EndMeeting(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	requireDurationsConserved(t, f.participants(t, m.UID))

	report, err := f.svc.GetReport(f.ctx, m.UID, hostID)
	require.NoError(t, err)
	for _, row := range report.Participants {
		p := f.participant(t, m.UID, models.UserKey(row.Key[len("user:"):]))
		assert.Equal(t, p.TotalDurationSeconds, row.TotalDurationSeconds)
		assert.Equal(t, row.TotalDurationSeconds, row.LiveDurationSeconds)
		assert.False(t, row.Active)
	}
}

func TestGetReport_WorkspaceMembership(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(t, 50)
	f.joinUser(t, m, "alice")

	membership := &mocks.MockMembershipChecker{}
	membership.On("IsMember", mock.Anything, "ws-1", "member").Return(true, nil)
	membership.On("IsMember", mock.Anything, "ws-1", "outsider").Return(false, nil)
	f.svc.deps.Membership = membership

	tests := []struct {
		name     string
		callerID string
		wantErr  bool
	}{
		{name: "host", callerID: hostID},
		{name: "workspace member", callerID: "member"},
		{name: "in-cluster request", callerID: ""},
		{name: "outsider", callerID: "outsider", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := f.svc.GetReport(f.ctx, m.UID, tt.callerID)
			if tt.wantErr {
				assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))
				assert.Nil(t, report)
				return
			}
			require.NoError(t, err)
			assert.Len(t, report.Participants, 1)
		})
	}
	membership.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, hostID)
}

func TestServiceReady(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.svc.ServiceReady())
	assert.True(t, f.svc.IsReady(f.ctx))

	empty := NewMeetingSessionService(Dependencies{}, DefaultServiceConfig())
	assert.False(t, empty.ServiceReady())
	_, err := empty.GetReport(f.ctx, "0f3b6a3e-8a54-4c1d-9b36-0f1c8a3e2d11", hostID)
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

const joinCodeAttempts = 3

// Dependencies are the adapters the service runs on. Membership and Events
// are optional.
type Dependencies struct {
	Meetings     domain.MeetingRepository
	Participants domain.ParticipantRepository
	Sessions     domain.SessionIndex
	Rooms        domain.RoomProvider
	Webhooks     domain.WebhookVerifier
	Membership   domain.MembershipChecker
	Events       domain.EventPublisher
}

// CreateMeetingRequest is the input of CreateMeeting.
type CreateMeetingRequest struct {
	WorkspaceUID   string
	Title          string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Capacity       int
	Recurrence     string
}

// MeetingDetails is a meeting with its derived attendance fields.
type MeetingDetails struct {
	Meeting        *models.Meeting
	ActiveCount    int
	NextOccurrence *time.Time
}

// JoinRequest is the input of Join. UserID is the authenticated principal and
// is empty for guests.
type JoinRequest struct {
	JoinCode    string
	UserID      string
	GuestName   string
	GuestToken  string
	DisplayName string
}

// JoinResult is what a joiner needs to connect to the room.
type JoinResult struct {
	MeetingUID     string
	ParticipantUID string
	SessionUID     string
	RoomName       string
	Identity       string
	AccessToken    string
	IsHost         bool
	// GuestToken is the replay token a guest sends back on later joins.
	GuestToken string
}

// MeetingSessionService implements the meeting session operations.
type MeetingSessionService struct {
	deps   Dependencies
	Config ServiceConfig

	store      *meetingStore
	identity   *IdentityResolver
	capacity   *CapacityGuard
	tracker    *SessionTracker
	lifecycle  MeetingLifecycle
	reconciler *LeaveReconciler
	reports    *ReportAggregator
	events     *eventDispatcher
	metrics    *serviceMetrics
	now        func() time.Time
}

// NewMeetingSessionService wires the components of the service.
func NewMeetingSessionService(deps Dependencies, config ServiceConfig) *MeetingSessionService {
	if config.DefaultCapacity <= 0 {
		config.DefaultCapacity = constants.DefaultMeetingCapacity
	}
	if config.RoomTokenTTL <= 0 {
		config.RoomTokenTTL = constants.DefaultRoomTokenTTL
	}

	s := &MeetingSessionService{
		deps:     deps,
		Config:   config,
		store:    newMeetingStore(deps.Meetings, deps.Participants, deps.Sessions),
		identity: NewIdentityResolver(),
		capacity: NewCapacityGuard(config.DefaultCapacity),
		tracker:  NewSessionTracker(),
		events:   newEventDispatcher(deps.Events),
		metrics:  newServiceMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	clock := func() time.Time { return s.now() }
	s.reconciler = newLeaveReconciler(s.store, s.tracker, s.events, s.metrics, clock)
	s.reports = NewReportAggregator(deps.Meetings, deps.Participants, clock)
	return s
}

// ServiceReady checks if the service is ready for use.
func (s *MeetingSessionService) ServiceReady() bool {
	return s.store.ready() && s.deps.Rooms != nil && s.deps.Webhooks != nil
}

// IsReady reports whether the service and its storage can take traffic.
func (s *MeetingSessionService) IsReady(ctx context.Context) bool {
	return s.ServiceReady() && s.deps.Meetings.IsReady(ctx)
}

// Reconciler exposes the leave reconciler to the session sweeper.
func (s *MeetingSessionService) Reconciler() *LeaveReconciler {
	return s.reconciler
}

// Wait blocks until background event publication and provider cleanup are done.
func (s *MeetingSessionService) Wait() {
	s.events.wait()
}

func (s *MeetingSessionService) checkReady(ctx context.Context) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}
	return nil
}

// CreateMeeting schedules a meeting owned by callerID.
func (s *MeetingSessionService) CreateMeeting(ctx context.Context, req CreateMeetingRequest, callerID string) (*models.Meeting, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if callerID == "" {
		return nil, domain.NewForbiddenError("creating a meeting requires an authenticated caller")
	}

	now := s.now()
	meeting := &models.Meeting{
		UID:            uuid.NewString(),
		WorkspaceUID:   strings.TrimSpace(req.WorkspaceUID),
		Title:          strings.TrimSpace(req.Title),
		Status:         models.MeetingStatusScheduled,
		ScheduledStart: req.ScheduledStart.UTC(),
		ScheduledEnd:   req.ScheduledEnd.UTC(),
		Recurrence:     strings.TrimSpace(req.Recurrence),
		Capacity:       req.Capacity,
		CreatorID:      callerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateMeeting(meeting); err != nil {
		return nil, err
	}

	if err := s.checkMembership(ctx, meeting.WorkspaceUID, callerID); err != nil {
		return nil, err
	}

	var err error
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		meeting.JoinCode, err = utils.NewJoinCode(constants.JoinCodeBytes)
		if err != nil {
			return nil, domain.NewInternalError("failed to generate join code", err)
		}
		err = s.deps.Meetings.CreateMeeting(ctx, meeting)
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			break
		}
		slog.WarnContext(ctx, "join code collision, generating another", "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "meeting created",
		"meeting_uid", meeting.UID,
		"workspace_uid", meeting.WorkspaceUID,
		"join_code", meeting.JoinCode,
	)
	return meeting, nil
}

func validateMeeting(m *models.Meeting) error {
	if m.Title == "" {
		return domain.NewValidationError("title is required")
	}
	if m.Capacity < 0 || m.Capacity > constants.MaxMeetingCapacity {
		return domain.NewValidationError(fmt.Sprintf("capacity must be between 0 and %d", constants.MaxMeetingCapacity))
	}
	if m.ScheduledStart.IsZero() {
		return domain.NewValidationError("scheduled start is required")
	}
	if !m.ScheduledEnd.IsZero() {
		if !m.ScheduledEnd.After(m.ScheduledStart) {
			return domain.NewValidationError("scheduled end must be after scheduled start")
		}
		if m.ScheduledEnd.Sub(m.ScheduledStart) > constants.MaxMeetingDurationMinutes*time.Minute {
			return domain.NewValidationError(fmt.Sprintf("meetings cannot last longer than %d minutes", constants.MaxMeetingDurationMinutes))
		}
	}
	if _, err := m.RecurrenceRule(); err != nil {
		return domain.NewValidationError("invalid recurrence", err)
	}
	return nil
}

// GetMeeting returns the meeting with its active count and next occurrence.
func (s *MeetingSessionService) GetMeeting(ctx context.Context, meetingUID string) (*MeetingDetails, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(meetingUID); err != nil {
		return nil, domain.NewNotFoundError("meeting not found")
	}

	meeting, err := s.deps.Meetings.GetMeeting(ctx, meetingUID)
	if err != nil {
		return nil, err
	}
	participants, err := s.deps.Participants.ListParticipants(ctx, meetingUID)
	if err != nil {
		return nil, err
	}

	details := &MeetingDetails{Meeting: meeting, ActiveCount: ActiveCount(participants)}
	if next, ok := meeting.NextOccurrence(s.now()); ok {
		details.NextOccurrence = &next
	}
	return details, nil
}

// Join admits the caller to the meeting behind the join code and returns the
// token of a newly opened session.
func (s *MeetingSessionService) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if !utils.IsJoinCode(req.JoinCode) {
		return nil, domain.NewNotFoundError("meeting not found")
	}

	meeting, err := s.deps.Meetings.GetMeetingByJoinCode(ctx, req.JoinCode)
	if err != nil {
		return nil, err
	}
	if meeting.IsHardEnded() {
		return nil, domain.NewMeetingEndedError("meeting was ended by the host")
	}

	key, err := s.identity.Resolve(meeting.UID, req.UserID, req.GuestName, req.GuestToken)
	if err != nil {
		return nil, err
	}
	if !key.IsGuest() && s.Config.JoinRequiresMembership {
		if err := s.checkMembership(ctx, meeting.WorkspaceUID, key.ID); err != nil {
			return nil, err
		}
	}

	displayName := utils.Truncate(
		utils.FirstNonBlank(req.DisplayName, req.GuestName, key.ID),
		constants.MaxDisplayNameLength,
	)

	participant, session, wentLive, err := s.openSession(ctx, meeting.UID, key, displayName)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeCapacityExceeded {
			s.metrics.rejected(ctx)
			slog.InfoContext(ctx, "join rejected, meeting is full", "meeting_uid", meeting.UID, logging.ErrKey, err)
		}
		return nil, err
	}

	identity := models.ProviderIdentity(key, session.UID)
	isHost := !key.IsGuest() && key.ID == meeting.CreatorID
	token, err := s.admit(ctx, meeting.RoomName(), domain.AccessTokenRequest{
		Room:        meeting.RoomName(),
		Identity:    identity,
		DisplayName: participant.DisplayName,
		IsHost:      isHost,
		TTL:         s.Config.RoomTokenTTL,
	})
	if err != nil {
		// The caller never got a token, so the session is closed right away.
		if _, closeErr := s.reconciler.closeSession(ctx, meeting.UID, key, session.UID, models.LeaveReasonExplicit, s.now()); closeErr != nil {
			slog.ErrorContext(ctx, "failed to close session after room admission failure",
				"session_uid", session.UID,
				logging.ErrKey, closeErr,
			)
		}
		return nil, err
	}

	s.metrics.joined(ctx, key.Kind)
	slog.InfoContext(ctx, "participant joined",
		"meeting_uid", meeting.UID,
		"participant_uid", participant.UID,
		"session_uid", session.UID,
		"participant_kind", key.Kind,
	)

	batch := s.events.batch()
	s.events.participantJoined(batch, participant, session)
	if wentLive != nil {
		s.events.meetingChanged(batch, wentLive, session.JoinTime)
	}
	s.events.flush(ctx, "participant_joined", batch)

	result := &JoinResult{
		MeetingUID:     meeting.UID,
		ParticipantUID: participant.UID,
		SessionUID:     session.UID,
		RoomName:       meeting.RoomName(),
		Identity:       identity,
		AccessToken:    token,
		IsHost:         isHost,
	}
	if key.IsGuest() {
		result.GuestToken = key.ID
	}
	return result, nil
}

// admit makes sure the provider room exists and signs the session's access
// token. It runs only once a seat is held, so rejected joins never reach the provider.
func (s *MeetingSessionService) admit(ctx context.Context, room string, req domain.AccessTokenRequest) (string, error) {
	if err := s.deps.Rooms.EnsureRoom(ctx, room); err != nil {
		return "", err
	}
	return s.deps.Rooms.IssueAccessToken(ctx, req)
}

// openSession runs the capacity check, opens the session and moves the
// meeting to live inside one critical section. The returned meeting is non-nil
// when the join made the meeting live.
func (s *MeetingSessionService) openSession(
	ctx context.Context,
	meetingUID string,
	key models.ParticipantKey,
	displayName string,
) (*models.Participant, *models.Session, *models.Meeting, error) {
	now := s.now()
	sessionUID := uuid.NewString()

	var (
		participant *models.Participant
		session     *models.Session
		wentLive    *models.Meeting
	)
	err := s.store.locked(ctx, meetingUID, func() error {
		meeting, meetingRev, err := s.deps.Meetings.GetMeetingWithRevision(ctx, meetingUID)
		if err != nil {
			return err
		}
		if meeting.IsHardEnded() {
			return domain.NewMeetingEndedError("meeting was ended by the host")
		}

		participants, err := s.deps.Participants.ListParticipants(ctx, meetingUID)
		if err != nil {
			return err
		}
		if err := s.capacity.Check(meeting, participants, key); err != nil {
			return err
		}

		existing, rev, err := s.store.findParticipant(ctx, meetingUID, key)
		if err != nil {
			return err
		}
		var prev *models.Participant
		if existing != nil {
			prev = existing.Clone()
		}
		p, sess := s.tracker.Join(meeting, existing, key, displayName, sessionUID, now)
		if err := s.store.saveParticipant(ctx, p, rev); err != nil {
			return err
		}

		// A failure past this point takes the stored session back out.
		live, err := s.commitJoin(ctx, meeting, meetingRev, p, sess, now)
		if err != nil {
			s.store.restoreParticipant(ctx, meetingUID, key, prev, err)
			return err
		}
		participant, session, wentLive = p, sess, live
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return participant, session, wentLive, nil
}

// commitJoin indexes the stored session and moves the meeting to live. It
// returns the meeting when the join made it live.
func (s *MeetingSessionService) commitJoin(
	ctx context.Context,
	meeting *models.Meeting,
	meetingRev uint64,
	p *models.Participant,
	sess *models.Session,
	now time.Time,
) (*models.Meeting, error) {
	err := s.deps.Sessions.PutSessionRef(ctx, &models.SessionRef{
		SessionUID:     sess.UID,
		MeetingUID:     meeting.UID,
		ParticipantUID: p.UID,
		ParticipantKey: p.Key,
		CreatedAt:      now,
	})
	if err != nil && domain.GetErrorType(err) != domain.ErrorTypeConflict {
		return nil, err
	}

	changed, err := s.lifecycle.OnSessionOpened(meeting, now)
	if err != nil || !changed {
		return nil, err
	}
	if err := s.deps.Meetings.UpdateMeeting(ctx, meeting, meetingRev); err != nil {
		return nil, err
	}
	return meeting, nil
}

// Leave closes a session on the client's request. Leaving a session that is
// already closed succeeds.
func (s *MeetingSessionService) Leave(ctx context.Context, sessionUID string) error {
	if err := s.checkReady(ctx); err != nil {
		return err
	}
	_, err := s.reconciler.LeaveSession(ctx, sessionUID, models.LeaveReasonExplicit)
	return err
}

// EndMeeting hard-ends the meeting on behalf of its creator and tears down the room.
func (s *MeetingSessionService) EndMeeting(ctx context.Context, meetingUID, callerID string) (*models.Meeting, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(meetingUID); err != nil {
		return nil, domain.NewNotFoundError("meeting not found")
	}

	meeting, err := s.deps.Meetings.GetMeeting(ctx, meetingUID)
	if err != nil {
		return nil, err
	}
	if callerID == "" || callerID != meeting.CreatorID {
		return nil, domain.NewForbiddenError("only the meeting host can end the meeting")
	}

	result, err := s.reconciler.EndMeeting(ctx, meetingUID)
	if err != nil {
		return nil, err
	}

	if result.Ended {
		room := result.Meeting.RoomName()
		s.events.dispatch(ctx, "delete_room", func(ctx context.Context) error {
			return s.deps.Rooms.DeleteRoom(ctx, room)
		})
	}
	return result.Meeting, nil
}

// ReceiveProviderWebhook verifies and applies a provider webhook delivery.
// Only a failed verification is reported to the caller; processing errors are
// logged so that the provider does not redeliver.
func (s *MeetingSessionService) ReceiveProviderWebhook(ctx context.Context, body []byte, header http.Header) error {
	if err := s.checkReady(ctx); err != nil {
		return err
	}
	if err := s.deps.Webhooks.Verify(body, header); err != nil {
		slog.WarnContext(ctx, "rejected provider webhook", logging.ErrKey, err)
		if domain.GetErrorType(err) != domain.ErrorTypeSignature {
			return domain.NewSignatureError("webhook verification failed", err)
		}
		return err
	}

	event, err := models.ParseWebhookEvent(body)
	if err != nil {
		slog.WarnContext(ctx, "ignoring malformed provider webhook", logging.ErrKey, err)
		return nil
	}
	ctx = logging.AppendCtx(ctx, slog.String("webhook_event", event.Event))

	switch event.Event {
	case models.WebhookEventParticipantLeft:
		result, err := s.reconciler.LeaveByProviderIdentity(ctx, event.Room.Name, event.Participant.Identity)
		if err != nil {
			slog.WarnContext(ctx, "failed to apply participant left webhook",
				"room", event.Room.Name,
				"identity", event.Participant.Identity,
				logging.ErrKey, err,
			)
			return nil
		}
		slog.DebugContext(ctx, "applied participant left webhook", "sessions_closed", len(result.Closed))
	default:
		slog.DebugContext(ctx, "ignoring provider webhook event")
	}
	return nil
}

// GetReport returns the attendance report of the meeting. Callers other than
// the host must belong to the meeting's workspace; an empty callerID is an
// in-cluster request and is not checked.
func (s *MeetingSessionService) GetReport(ctx context.Context, meetingUID, callerID string) (*models.MeetingReport, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(meetingUID); err != nil {
		return nil, domain.NewNotFoundError("meeting not found")
	}

	if callerID != "" {
		meeting, err := s.deps.Meetings.GetMeeting(ctx, meetingUID)
		if err != nil {
			return nil, err
		}
		if callerID != meeting.CreatorID {
			if err := s.checkMembership(ctx, meeting.WorkspaceUID, callerID); err != nil {
				return nil, err
			}
		}
	}
	return s.reports.BuildReport(ctx, meetingUID)
}

func (s *MeetingSessionService) checkMembership(ctx context.Context, workspaceUID, principal string) error {
	if s.deps.Membership == nil || workspaceUID == "" {
		return nil
	}
	member, err := s.deps.Membership.IsMember(ctx, workspaceUID, principal)
	if err != nil {
		return err
	}
	if !member {
		return domain.NewForbiddenError("caller is not a member of the workspace")
	}
	return nil
}

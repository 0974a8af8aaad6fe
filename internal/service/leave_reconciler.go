// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

// CloseResult describes what a leave signal changed. Closed is empty when the
// signal referred to a session that was already closed.
type CloseResult struct {
	Meeting      *models.Meeting
	Participant  *models.Participant
	Closed       []models.Session
	MeetingEnded bool
}

// EndResult describes a hard end of a meeting.
type EndResult struct {
	Meeting *models.Meeting
	// Ended is false when the meeting had already been ended by its host.
	Ended  bool
	Closed int
}

// LeaveReconciler is the single entry point for every signal that closes
// sessions: explicit leaves, provider webhooks, host ends and the TTL sweep.
// Closing a session twice is a no-op, whichever signals race.
type LeaveReconciler struct {
	store     *meetingStore
	tracker   *SessionTracker
	lifecycle MeetingLifecycle
	events    *eventDispatcher
	metrics   *serviceMetrics
	now       func() time.Time
}

func newLeaveReconciler(store *meetingStore, tracker *SessionTracker, events *eventDispatcher, metrics *serviceMetrics, now func() time.Time) *LeaveReconciler {
	return &LeaveReconciler{
		store:   store,
		tracker: tracker,
		events:  events,
		metrics: metrics,
		now:     now,
	}
}

// LeaveSession closes the session with the given uid.
func (r *LeaveReconciler) LeaveSession(ctx context.Context, sessionUID string, reason models.LeaveReason) (*CloseResult, error) {
	if _, err := uuid.Parse(sessionUID); err != nil {
		return nil, domain.NewNotFoundError("session not found")
	}

	ref, err := r.store.sessions.GetSessionRef(ctx, sessionUID)
	if err != nil {
		return nil, err
	}
	return r.closeSession(ctx, ref.MeetingUID, ref.ParticipantKey, sessionUID, reason, r.now())
}

// LeaveByProviderIdentity closes the session a provider reported as gone. An
// identity without a session suffix closes the participant's oldest open session.
func (r *LeaveReconciler) LeaveByProviderIdentity(ctx context.Context, roomName, identity string) (*CloseResult, error) {
	key, sessionUID, err := models.ParseProviderIdentity(identity)
	if err != nil {
		return nil, domain.NewValidationError("unrecognised provider identity", err)
	}

	meeting, err := r.store.meetings.GetMeetingByJoinCode(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return r.closeSession(ctx, meeting.UID, key, sessionUID, models.LeaveReasonWebhook, r.now())
}

// closeSession is where every single-session close ends up.
func (r *LeaveReconciler) closeSession(
	ctx context.Context,
	meetingUID string,
	key models.ParticipantKey,
	sessionUID string,
	reason models.LeaveReason,
	now time.Time,
) (*CloseResult, error) {
	if !reason.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown leave reason %q", reason))
	}

	result := &CloseResult{}
	var closed *models.Session

	err := r.store.locked(ctx, meetingUID, func() error {
		p, rev, err := r.store.participants.GetParticipant(ctx, meetingUID, key)
		if err != nil {
			return err
		}

		prev := p.Clone()
		s, err := r.tracker.CloseSession(p, sessionUID, reason, now)
		if err != nil {
			return err
		}
		closed = nil
		if s != nil {
			if err := r.store.participants.UpdateParticipant(ctx, p, rev); err != nil {
				return err
			}
			copied := *s
			closed = &copied
		}
		result.Participant = p

		// Settled even when the session was already closed, so a repeated
		// signal finishes a soft end that an earlier attempt could not store.
		m, ended, err := r.store.settleAfterClose(ctx, r.lifecycle, meetingUID, now)
		if err != nil {
			if closed != nil {
				r.store.restoreParticipant(ctx, meetingUID, key, prev, err)
			}
			return err
		}
		result.Meeting = m
		result.MeetingEnded = result.MeetingEnded || ended
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closed == nil {
		slog.DebugContext(ctx, "leave signal for a session that is already closed",
			"meeting_uid", meetingUID,
			"participant_key", key.String(),
			"session_uid", sessionUID,
			"reason", reason,
		)
		return result, nil
	}
	result.Closed = []models.Session{*closed}

	slog.InfoContext(ctx, "session closed",
		"meeting_uid", meetingUID,
		"participant_uid", result.Participant.UID,
		"session_uid", closed.UID,
		"reason", reason,
		"duration_seconds", closed.DurationSeconds(),
	)
	r.metrics.closed(ctx, *closed)

	batch := r.events.batch()
	r.events.participantLeft(batch, result.Participant, *closed)
	if result.MeetingEnded {
		r.events.meetingChanged(batch, result.Meeting, now)
	}
	r.events.flush(ctx, "session_closed", batch)

	return result, nil
}

// EndMeeting hard-ends the meeting and closes every open session at the
// instant the meeting ended. Ending an already hard-ended meeting is a no-op.
func (r *LeaveReconciler) EndMeeting(ctx context.Context, meetingUID string) (*EndResult, error) {
	now := r.now()
	result := &EndResult{}
	closedBy := map[string]*models.Participant{}
	var closed []models.Session

	err := r.store.locked(ctx, meetingUID, func() error {
		m, rev, err := r.store.meetings.GetMeetingWithRevision(ctx, meetingUID)
		if err != nil {
			return err
		}
		if r.lifecycle.HardEnd(m, now) {
			if err := r.store.meetings.UpdateMeeting(ctx, m, rev); err != nil {
				return err
			}
			result.Ended = true
		}
		result.Meeting = m
		endedAt := utils.TimeValue(m.EndedAt)

		participants, err := r.store.participants.ListParticipants(ctx, meetingUID)
		if err != nil {
			return err
		}
		for _, listed := range participants {
			if !listed.IsActive() {
				continue
			}
			p, prev, err := r.store.participants.GetParticipant(ctx, meetingUID, listed.Key)
			if err != nil {
				return err
			}
			sessions := r.tracker.CloseAll(p, models.LeaveReasonHostEnd, endedAt)
			if len(sessions) == 0 {
				continue
			}
			if err := r.store.participants.UpdateParticipant(ctx, p, prev); err != nil {
				return err
			}
			closedBy[p.UID] = p
			closed = append(closed, sessions...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Closed = len(closed)

	if !result.Ended && len(closed) == 0 {
		return result, nil
	}

	slog.InfoContext(ctx, "meeting ended by host",
		"meeting_uid", meetingUID,
		"sessions_closed", len(closed),
	)
	r.metrics.closed(ctx, closed...)

	batch := r.events.batch()
	for _, s := range closed {
		r.events.participantLeft(batch, closedBy[s.ParticipantUID], s)
	}
	if result.Ended {
		r.events.meetingChanged(batch, result.Meeting, now)
	}
	r.events.flush(ctx, "meeting_ended", batch)

	return result, nil
}

// ExpireStaleSessions closes sessions of live meetings that have been open
// longer than ttl. It returns how many sessions it closed.
func (r *LeaveReconciler) ExpireStaleSessions(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	now := r.now()
	cutoff := now.Add(-ttl)

	meetings, err := r.store.meetings.ListMeetings(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, m := range meetings {
		if m.Status != models.MeetingStatusLive {
			continue
		}
		participants, err := r.store.participants.ListParticipants(ctx, m.UID)
		if err != nil {
			slog.WarnContext(ctx, "failed to list participants for expiry", "meeting_uid", m.UID, logging.ErrKey, err)
			continue
		}
		for _, p := range participants {
			for _, s := range p.Sessions {
				if !s.IsOpen() || !s.JoinTime.Before(cutoff) {
					continue
				}
				res, err := r.closeSession(ctx, m.UID, p.Key, s.UID, models.LeaveReasonTTLExpired, now)
				if err != nil {
					slog.WarnContext(ctx, "failed to expire session",
						"meeting_uid", m.UID,
						"session_uid", s.UID,
						logging.ErrKey, err,
					)
					continue
				}
				expired += len(res.Closed)
			}
		}
	}
	return expired, nil
}

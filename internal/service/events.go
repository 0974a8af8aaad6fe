// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/concurrent"
)

const eventWorkers = 4

// eventBatch collects the events of one committed state change.
type eventBatch struct {
	jobs []func(ctx context.Context) error
}

func (b *eventBatch) meeting(publisher domain.EventPublisher, subject string, m *models.Meeting, at time.Time) {
	event := models.NewMeetingEvent(m, at)
	b.jobs = append(b.jobs, func(ctx context.Context) error {
		return publisher.PublishMeetingEvent(ctx, subject, event)
	})
}

func (b *eventBatch) participant(publisher domain.EventPublisher, subject string, event models.ParticipantEvent) {
	b.jobs = append(b.jobs, func(ctx context.Context) error {
		return publisher.PublishParticipantEvent(ctx, subject, event)
	})
}

// eventDispatcher publishes lifecycle events in the background once the
// state change they describe is stored. Events are not published when no
// publisher is configured.
type eventDispatcher struct {
	publisher domain.EventPublisher
	pool      *concurrent.WorkerPool
}

func newEventDispatcher(publisher domain.EventPublisher) *eventDispatcher {
	return &eventDispatcher{
		publisher: publisher,
		pool:      concurrent.NewWorkerPool(eventWorkers),
	}
}

func (d *eventDispatcher) batch() *eventBatch {
	return &eventBatch{}
}

func (d *eventDispatcher) participantJoined(b *eventBatch, p *models.Participant, s *models.Session) {
	if d.publisher == nil {
		return
	}
	b.participant(d.publisher, models.ParticipantJoinedSubject, models.ParticipantEvent{
		MeetingUID:     p.MeetingUID,
		ParticipantUID: p.UID,
		ParticipantKey: p.Key.String(),
		DisplayName:    p.DisplayName,
		SessionUID:     s.UID,
		OccurredAt:     s.JoinTime,
	})
}

func (d *eventDispatcher) participantLeft(b *eventBatch, p *models.Participant, s models.Session) {
	if d.publisher == nil || s.LeaveTime == nil {
		return
	}
	b.participant(d.publisher, models.ParticipantLeftSubject, models.ParticipantEvent{
		MeetingUID:      p.MeetingUID,
		ParticipantUID:  p.UID,
		ParticipantKey:  p.Key.String(),
		DisplayName:     p.DisplayName,
		SessionUID:      s.UID,
		LeaveReason:     s.LeaveReason,
		DurationSeconds: s.DurationSeconds(),
		OccurredAt:      *s.LeaveTime,
	})
}

func (d *eventDispatcher) meetingChanged(b *eventBatch, m *models.Meeting, at time.Time) {
	if d.publisher == nil {
		return
	}
	subject := models.MeetingLiveSubject
	if m.Status == models.MeetingStatusEnded {
		subject = models.MeetingEndedSubject
	}
	b.meeting(d.publisher, subject, m, at)
}

// flush hands the batch to the worker pool.
func (d *eventDispatcher) flush(ctx context.Context, label string, b *eventBatch) {
	if b == nil || len(b.jobs) == 0 {
		return
	}
	d.pool.Dispatch(ctx, label, b.jobs...)
}

// dispatch runs background work that is not an event, such as provider cleanup.
func (d *eventDispatcher) dispatch(ctx context.Context, label string, fn func(ctx context.Context) error) {
	d.pool.Dispatch(ctx, label, fn)
}

// wait blocks until every dispatched job has finished.
func (d *eventDispatcher) wait() {
	d.pool.Wait()
}

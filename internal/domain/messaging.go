// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// EventPublisher publishes lifecycle events after the state change is committed.
type EventPublisher interface {
	PublishMeetingEvent(ctx context.Context, subject string, event models.MeetingEvent) error
	PublishParticipantEvent(ctx context.Context, subject string, event models.ParticipantEvent) error
}

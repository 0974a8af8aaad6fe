// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// MockEventPublisher implements domain.EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishMeetingEvent(ctx context.Context, subject string, event models.MeetingEvent) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishParticipantEvent(ctx context.Context, subject string, event models.ParticipantEvent) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

// MockRoomProvider implements domain.RoomProvider for testing
type MockRoomProvider struct {
	mock.Mock
}

func (m *MockRoomProvider) EnsureRoom(ctx context.Context, room string) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomProvider) IssueAccessToken(ctx context.Context, req domain.AccessTokenRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockRoomProvider) DeleteRoom(ctx context.Context, room string) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// MockWebhookVerifier implements domain.WebhookVerifier for testing
type MockWebhookVerifier struct {
	mock.Mock
}

func (m *MockWebhookVerifier) Verify(body []byte, header http.Header) error {
	args := m.Called(body, header)
	return args.Error(0)
}

// MockMembershipChecker implements domain.MembershipChecker for testing
type MockMembershipChecker struct {
	mock.Mock
}

func (m *MockMembershipChecker) IsMember(ctx context.Context, workspaceUID, principal string) (bool, error) {
	args := m.Called(ctx, workspaceUID, principal)
	return args.Bool(0), args.Error(1)
}

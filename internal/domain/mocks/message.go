// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"sync"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

var _ domain.Message = (*MockMessage)(nil)

// MockMessage is an in-memory domain.Message that records every reply.
type MockMessage struct {
	subject  string
	data     []byte
	hasReply bool

	// RespondErr is returned by every Respond call when set.
	RespondErr error

	mu      sync.Mutex
	replies [][]byte
}

// NewRequest creates a message whose sender waits for a reply.
func NewRequest(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data, hasReply: true}
}

// NewNotification creates a fire-and-forget message.
func NewNotification(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data}
}

func (m *MockMessage) Subject() string { return m.subject }

func (m *MockMessage) Data() []byte { return m.data }

func (m *MockMessage) HasReply() bool { return m.hasReply }

func (m *MockMessage) Respond(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, data)
	return m.RespondErr
}

// Replies returns every payload passed to Respond, in order.
func (m *MockMessage) Replies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.replies...)
}

// LastReply returns the most recent reply and whether there was one.
func (m *MockMessage) LastReply() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return nil, false
	}
	return m.replies[len(m.replies)-1], true
}

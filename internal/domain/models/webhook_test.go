// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "participant left",
			body: `{"event":"participant_left","room":{"name":"abc"},"participant":{"identity":"user:alice"}}`,
		},
		{
			name: "room finished",
			body: `{"event":"room_finished","room":{"name":"abc"}}`,
		},
		{
			name: "unknown events pass through",
			body: `{"event":"track_published"}`,
		},
		{
			name:    "participant left without identity",
			body:    `{"event":"participant_left","room":{"name":"abc"}}`,
			wantErr: true,
		},
		{
			name:    "participant left without room",
			body:    `{"event":"participant_left","participant":{"identity":"user:alice"}}`,
			wantErr: true,
		},
		{
			name:    "missing event",
			body:    `{"room":{"name":"abc"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `event=participant_left`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseWebhookEvent([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, ev)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, ev.Event)
		})
	}
}

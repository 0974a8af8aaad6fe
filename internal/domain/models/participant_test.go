// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuestToken = "6f1c2f7e-8a41-4d0b-9a47-2f4f3c1d9e10"
const testSessionUID = "0b7d4c55-1e0e-4f33-8d6a-8b7d1c2f3a44"

func TestParseParticipantKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ParticipantKey
		wantErr bool
	}{
		{name: "user", input: "user:alice", want: UserKey("alice")},
		{name: "user id with colon", input: "user:auth0|abc:def", want: UserKey("auth0|abc:def")},
		{name: "guest", input: "guest:" + testGuestToken, want: GuestKey(testGuestToken)},
		{name: "guest with bad token", input: "guest:not-a-uuid", wantErr: true},
		{name: "empty user", input: "user: ", wantErr: true},
		{name: "unknown kind", input: "bot:x", wantErr: true},
		{name: "no separator", input: "alice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParticipantKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParticipantKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParseProviderIdentity(t *testing.T) {
	tests := []struct {
		name        string
		identity    string
		wantKey     ParticipantKey
		wantSession string
		wantErr     bool
	}{
		{
			name:        "user with session",
			identity:    ProviderIdentity(UserKey("alice"), testSessionUID),
			wantKey:     UserKey("alice"),
			wantSession: testSessionUID,
		},
		{
			name:        "guest with session",
			identity:    ProviderIdentity(GuestKey(testGuestToken), testSessionUID),
			wantKey:     GuestKey(testGuestToken),
			wantSession: testSessionUID,
		},
		{
			name:     "user without session",
			identity: "user:alice",
			wantKey:  UserKey("alice"),
		},
		{
			name:     "hash that is not a session uid stays in the user id",
			identity: "user:team#42",
			wantKey:  UserKey("team#42"),
		},
		{
			name:     "garbage",
			identity: "#" + testSessionUID,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, sessionUID, err := ParseProviderIdentity(tt.identity)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantSession, sessionUID)
		})
	}
}

func TestParticipantKey_JSONRoundTrip(t *testing.T) {
	p := Participant{UID: "p1", Key: GuestKey(testGuestToken)}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"guest:`+testGuestToken+`"`)

	var decoded Participant
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.Key, decoded.Key)
}

func TestParticipant_SessionHelpers(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	left := base.Add(90 * time.Second)

	p := Participant{
		Sessions: []Session{
			{UID: "s2", JoinTime: base.Add(time.Minute)},
			{UID: "s1", JoinTime: base, LeaveTime: &left, LeaveReason: LeaveReasonExplicit},
			{UID: "s3", JoinTime: base.Add(30 * time.Second)},
		},
	}

	assert.True(t, p.IsActive())
	assert.Equal(t, 2, p.OpenSessionCount())
	assert.Equal(t, 2, p.OldestOpenSessionIndex(), "s3 joined before s2")
	assert.Equal(t, 0, p.SessionIndex("s2"))
	assert.Equal(t, -1, p.SessionIndex("missing"))

	c := p.Clone()
	c.Sessions[0].LeaveTime = &left
	c.Sessions = append(c.Sessions, Session{UID: "s4", JoinTime: base})
	assert.True(t, p.Sessions[0].IsOpen(), "clone must not share sessions")
	assert.Len(t, p.Sessions, 3)
}

func TestParticipant_NoOpenSession(t *testing.T) {
	left := time.Now()
	p := Participant{Sessions: []Session{{UID: "s1", JoinTime: left.Add(-time.Minute), LeaveTime: &left}}}

	assert.False(t, p.IsActive())
	assert.Equal(t, -1, p.OldestOpenSessionIndex())
}

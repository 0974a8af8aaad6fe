// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// keySeparator separates the tokens of a NATS KV key.
const keySeparator = "."

// tokenEncoding only produces characters that are valid in NATS KV keys.
var tokenEncoding = base64.RawURLEncoding

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// Key joins raw tokens into a key. The tokens must already be KV safe.
func (kb *KeyBuilder) Key(tokens ...string) string {
	key := strings.Join(tokens, keySeparator)
	if kb.prefix == "" {
		return key
	}
	return kb.prefix + keySeparator + key
}

// MeetingKey is the key of a meeting record.
func (kb *KeyBuilder) MeetingKey(meetingUID string) string {
	return kb.Key(meetingUID)
}

// JoinCodeKey is the key of the join code reservation of a meeting.
func (kb *KeyBuilder) JoinCodeKey(joinCode string) string {
	return kb.Key(joinCode)
}

// ParticipantKey is the key of a participant record. One participant key maps
// to exactly one storage key, which is what keeps identities unique per meeting.
func (kb *KeyBuilder) ParticipantKey(meetingUID string, key models.ParticipantKey) string {
	return kb.Key(meetingUID, kb.EncodeToken(key.String()))
}

// ParticipantPrefix is the prefix shared by the participant keys of a meeting.
func (kb *KeyBuilder) ParticipantPrefix(meetingUID string) string {
	return kb.Key(meetingUID) + keySeparator
}

// SessionRefKey is the key of a session index entry.
func (kb *KeyBuilder) SessionRefKey(sessionUID string) string {
	return kb.Key(sessionUID)
}

// EncodeToken encodes arbitrary text into a single KV key token.
func (kb *KeyBuilder) EncodeToken(s string) string {
	return tokenEncoding.EncodeToString([]byte(s))
}

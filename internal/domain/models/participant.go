// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes authenticated users from guests.
type ParticipantKind string

// Participant kinds.
const (
	ParticipantKindUser  ParticipantKind = "user"
	ParticipantKindGuest ParticipantKind = "guest"
)

const providerIdentitySeparator = "#"

// ErrInvalidParticipantKey is returned when a participant key cannot be parsed.
var ErrInvalidParticipantKey = errors.New("invalid participant key")

// ParticipantKey is the stable identity of a participant within a meeting.
// It is either an authenticated user id or a guest replay token, never both.
type ParticipantKey struct {
	Kind ParticipantKind
	ID   string
}

// UserKey builds the key of an authenticated user.
func UserKey(userID string) ParticipantKey {
	return ParticipantKey{Kind: ParticipantKindUser, ID: userID}
}

// GuestKey builds the key of a guest from their replay token.
func GuestKey(token string) ParticipantKey {
	return ParticipantKey{Kind: ParticipantKindGuest, ID: token}
}

// IsZero reports whether the key is unset.
func (k ParticipantKey) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

// IsGuest reports whether the key belongs to a guest.
func (k ParticipantKey) IsGuest() bool {
	return k.Kind == ParticipantKindGuest
}

func (k ParticipantKey) String() string {
	if k.IsZero() {
		return ""
	}
	return string(k.Kind) + ":" + k.ID
}

// Validate checks that the key has a known kind and a usable id.
func (k ParticipantKey) Validate() error {
	switch k.Kind {
	case ParticipantKindUser:
		if strings.TrimSpace(k.ID) == "" {
			return fmt.Errorf("%w: empty user id", ErrInvalidParticipantKey)
		}
	case ParticipantKindGuest:
		if _, err := uuid.Parse(k.ID); err != nil {
			return fmt.Errorf("%w: guest token is not a uuid", ErrInvalidParticipantKey)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidParticipantKey, k.Kind)
	}
	return nil
}

// MarshalText stores the key in its "kind:id" form.
func (k ParticipantKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "kind:id" form.
func (k *ParticipantKey) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = ParticipantKey{}
		return nil
	}
	parsed, err := ParseParticipantKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseParticipantKey parses a key in its "kind:id" form.
func ParseParticipantKey(s string) (ParticipantKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ParticipantKey{}, fmt.Errorf("%w: %q", ErrInvalidParticipantKey, s)
	}
	key := ParticipantKey{Kind: ParticipantKind(kind), ID: id}
	if err := key.Validate(); err != nil {
		return ParticipantKey{}, err
	}
	return key, nil
}

// ProviderIdentity is the identity a participant's session is known by in the
// media-room provider. Carrying the session uid lets provider webhooks close the
// exact session that disconnected.
func ProviderIdentity(key ParticipantKey, sessionUID string) string {
	if sessionUID == "" {
		return key.String()
	}
	return key.String() + providerIdentitySeparator + sessionUID
}

// ParseProviderIdentity splits a provider identity into its participant key and
// the session uid, which is empty when the identity carries none.
func ParseProviderIdentity(identity string) (ParticipantKey, string, error) {
	keyPart, sessionUID := identity, ""
	if i := strings.LastIndex(identity, providerIdentitySeparator); i >= 0 {
		if _, err := uuid.Parse(identity[i+1:]); err == nil {
			keyPart, sessionUID = identity[:i], identity[i+1:]
		}
	}

	key, err := ParseParticipantKey(keyPart)
	if err != nil {
		return ParticipantKey{}, "", err
	}
	return key, sessionUID, nil
}

// Participant is one distinct identity's presence in a meeting, with every
// session it opened.
type Participant struct {
	UID                  string         `json:"uid"`
	MeetingUID           string         `json:"meeting_uid"`
	Key                  ParticipantKey `json:"key"`
	DisplayName          string         `json:"display_name"`
	FirstJoinedAt        time.Time      `json:"first_joined_at"`
	LastLeftAt           *time.Time     `json:"last_left_at,omitempty"`
	TotalDurationSeconds int64          `json:"total_duration_seconds"`
	Sessions             []Session      `json:"sessions,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsActive reports whether the participant has at least one open session.
func (p *Participant) IsActive() bool {
	return p.OpenSessionCount() > 0
}

// OpenSessionCount returns the number of sessions that have not been closed.
func (p *Participant) OpenSessionCount() int {
	n := 0
	for i := range p.Sessions {
		if p.Sessions[i].IsOpen() {
			n++
		}
	}
	return n
}

// SessionIndex returns the position of the session with the given uid, or -1.
func (p *Participant) SessionIndex(sessionUID string) int {
	for i := range p.Sessions {
		if p.Sessions[i].UID == sessionUID {
			return i
		}
	}
	return -1
}

// OldestOpenSessionIndex returns the position of the open session with the
// earliest join time, or -1 when every session is closed.
func (p *Participant) OldestOpenSessionIndex() int {
	idx := -1
	for i := range p.Sessions {
		if !p.Sessions[i].IsOpen() {
			continue
		}
		if idx < 0 || p.Sessions[i].JoinTime.Before(p.Sessions[idx].JoinTime) {
			idx = i
		}
	}
	return idx
}

// Clone returns a copy of the participant that shares no session storage with p.
func (p *Participant) Clone() *Participant {
	c := *p
	c.Sessions = slices.Clone(p.Sessions)
	return &c
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// IdentityResolver maps a join request to the participant key it belongs to.
//
// Authenticated callers are keyed by user id, so every tab and device of the
// same user lands on one participant. Guests are keyed by a replay token the
// client stores and sends back on later joins. A guest without a token gets a
// fresh one and therefore a new participant.
type IdentityResolver struct {
	newToken func() string
}

// NewIdentityResolver creates an IdentityResolver that issues uuid replay tokens.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{newToken: uuid.NewString}
}

// Resolve returns the participant key of the caller.
func (r *IdentityResolver) Resolve(meetingUID, userID, guestName, guestToken string) (models.ParticipantKey, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		return models.UserKey(userID), nil
	}

	if strings.TrimSpace(guestName) == "" {
		return models.ParticipantKey{}, domain.NewValidationError("guests must provide a display name")
	}

	guestToken = strings.TrimSpace(guestToken)
	if guestToken == "" {
		return models.GuestKey(r.newToken()), nil
	}

	key := models.GuestKey(strings.ToLower(guestToken))
	if err := key.Validate(); err != nil {
		return models.ParticipantKey{}, domain.NewValidationError("malformed guest token for meeting "+meetingUID, err)
	}
	return key, nil
}

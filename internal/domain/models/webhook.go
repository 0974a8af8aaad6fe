// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Provider webhook event names.
const (
	WebhookEventParticipantJoined = "participant_joined"
	WebhookEventParticipantLeft   = "participant_left"
	WebhookEventRoomStarted       = "room_started"
	WebhookEventRoomFinished      = "room_finished"
)

// WebhookRoom is the room a provider webhook refers to.
type WebhookRoom struct {
	SID  string `json:"sid,omitempty"`
	Name string `json:"name"`
}

// WebhookParticipant is the participant a provider webhook refers to.
type WebhookParticipant struct {
	SID      string `json:"sid,omitempty"`
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

// WebhookEvent is a verified delivery from the media-room provider.
type WebhookEvent struct {
	ID          string              `json:"id,omitempty"`
	Event       string              `json:"event"`
	CreatedAt   int64               `json:"createdAt,omitempty"`
	Room        *WebhookRoom        `json:"room,omitempty"`
	Participant *WebhookParticipant `json:"participant,omitempty"`
}

// ParseWebhookEvent decodes a webhook body and checks the fields its event needs.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.Event == "" {
		return nil, errors.New("webhook event name is missing")
	}

	switch ev.Event {
	case WebhookEventParticipantJoined, WebhookEventParticipantLeft:
		if ev.Participant == nil || ev.Participant.Identity == "" {
			return nil, fmt.Errorf("%s event has no participant identity", ev.Event)
		}
		fallthrough
	case WebhookEventRoomStarted, WebhookEventRoomFinished:
		if ev.Room == nil || ev.Room.Name == "" {
			return nil, fmt.Errorf("%s event has no room name", ev.Event)
		}
	}
	return &ev, nil
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"net/http"
	"time"
)

// AccessTokenRequest describes the grants of a provider access token.
type AccessTokenRequest struct {
	Room        string
	Identity    string
	DisplayName string
	IsHost      bool
	TTL         time.Duration
}

// RoomProvider is the media-room provider the meetings are hosted on.
type RoomProvider interface {
	// EnsureRoom creates the room if it does not exist yet.
	EnsureRoom(ctx context.Context, room string) error
	// IssueAccessToken signs a token that lets one session connect to a room.
	IssueAccessToken(ctx context.Context, req AccessTokenRequest) (string, error)
	// DeleteRoom removes the room, disconnecting everyone still in it.
	DeleteRoom(ctx context.Context, room string) error
}

// WebhookVerifier authenticates a provider webhook delivery.
type WebhookVerifier interface {
	Verify(body []byte, header http.Header) error
}

// MembershipChecker answers whether a principal belongs to a workspace.
type MembershipChecker interface {
	IsMember(ctx context.Context, workspaceUID, principal string) (bool, error)
}

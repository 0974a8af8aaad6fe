// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package rooms

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

// LocalProvider signs tokens but never calls a room service. It is used for
// local development against a provider that creates rooms on first join.
type LocalProvider struct {
	issuer   *TokenIssuer
	tokenTTL time.Duration
}

// NewLocalProvider creates a provider that only signs access tokens.
func NewLocalProvider(apiKey, apiSecret string, tokenTTL time.Duration) (*LocalProvider, error) {
	issuer, err := NewTokenIssuer(apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{issuer: issuer, tokenTTL: tokenTTL}, nil
}

// EnsureRoom does nothing.
func (p *LocalProvider) EnsureRoom(ctx context.Context, room string) error {
	slog.DebugContext(ctx, "skipping room creation", "room", room)
	return nil
}

// IssueAccessToken signs a participant token.
func (p *LocalProvider) IssueAccessToken(_ context.Context, req domain.AccessTokenRequest) (string, error) {
	if req.TTL == 0 {
		req.TTL = p.tokenTTL
	}
	return p.issuer.AccessToken(req)
}

// DeleteRoom does nothing.
func (p *LocalProvider) DeleteRoom(ctx context.Context, room string) error {
	slog.DebugContext(ctx, "skipping room deletion", "room", room)
	return nil
}

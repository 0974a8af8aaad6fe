// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package rooms talks to a LiveKit-compatible media-room provider.
package rooms

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

const defaultTokenTTL = 6 * time.Hour

// VideoGrant carries the room permissions of an access token.
type VideoGrant struct {
	Room         string `json:"room,omitempty"`
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	RoomAdmin    bool   `json:"roomAdmin,omitempty"`
	RoomCreate   bool   `json:"roomCreate,omitempty"`
	RoomList     bool   `json:"roomList,omitempty"`
	CanPublish   *bool  `json:"canPublish,omitempty"`
	CanSubscribe *bool  `json:"canSubscribe,omitempty"`
}

// AccessClaims are the claims the provider expects in a signed access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// TokenIssuer signs provider access tokens with the API key pair.
type TokenIssuer struct {
	apiKey    string
	apiSecret []byte
	now       func() time.Time
}

// NewTokenIssuer creates a token issuer for the given API key pair.
func NewTokenIssuer(apiKey, apiSecret string) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("room provider api key and secret are required")
	}
	return &TokenIssuer{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		now:       time.Now,
	}, nil
}

// AccessToken signs a token that lets one session join a room.
func (t *TokenIssuer) AccessToken(req domain.AccessTokenRequest) (string, error) {
	if req.Room == "" || req.Identity == "" {
		return "", domain.NewValidationError("room and identity are required")
	}

	allow := true
	grant := &VideoGrant{
		Room:         req.Room,
		RoomJoin:     true,
		RoomAdmin:    req.IsHost,
		CanPublish:   &allow,
		CanSubscribe: &allow,
	}
	return t.sign(req.Identity, req.DisplayName, grant, req.TTL)
}

// AdminToken signs a short-lived token for the room service API.
func (t *TokenIssuer) AdminToken(ttl time.Duration) (string, time.Time, error) {
	expiry := t.now().Add(ttl)
	token, err := t.sign("", "", &VideoGrant{RoomCreate: true, RoomAdmin: true, RoomList: true}, ttl)
	return token, expiry, err
}

func (t *TokenIssuer) sign(identity, name string, grant *VideoGrant, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := t.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  name,
		Video: grant,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.apiSecret)
	if err != nil {
		return "", domain.NewInternalError("failed to sign provider token", err)
	}
	return signed, nil
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

// bodyHashClaims is the token a LiveKit-compatible provider signs each delivery with.
type bodyHashClaims struct {
	jwt.RegisteredClaims
	SHA256 string `json:"sha256"`
}

// JWTVerifier checks the Authorization token of a delivery: signed with the
// API secret, issued by the API key, carrying the base64 SHA-256 of the body.
// Tokens must carry an expiry so that a captured delivery cannot be replayed later.
type JWTVerifier struct {
	apiKey string
	secret []byte
	leeway time.Duration
}

// NewJWTVerifier creates a verifier for the provider API key pair.
func NewJWTVerifier(apiKey, apiSecret string) *JWTVerifier {
	return &JWTVerifier{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		leeway: 30 * time.Second,
	}
}

// Verify implements domain.WebhookVerifier.
func (v *JWTVerifier) Verify(body []byte, header http.Header) error {
	if len(v.secret) == 0 {
		return domain.NewSignatureError("webhook secret not configured")
	}

	raw := strings.TrimSpace(header.Get("Authorization"))
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer"))
	if raw == "" {
		return domain.NewSignatureError("missing webhook authorization")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.apiKey != "" {
		opts = append(opts, jwt.WithIssuer(v.apiKey))
	}

	claims := &bodyHashClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return domain.NewSignatureError("invalid webhook token", err)
	}

	sum := sha256.Sum256(body)
	expected := base64.StdEncoding.EncodeToString(sum[:])
	if !hmac.Equal([]byte(claims.SHA256), []byte(expected)) {
		return domain.NewSignatureError("webhook body hash mismatch")
	}
	return nil
}

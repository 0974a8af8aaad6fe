// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package webhook authenticates media-room provider webhook deliveries.
package webhook

import (
	"fmt"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
)

// Verifier kinds accepted by NewVerifier.
const (
	KindJWT  = "jwt"
	KindHMAC = "hmac"
)

// NewVerifier selects the verifier for kind. The JWT verifier falls back to
// the provider API secret when no dedicated webhook secret is set.
func NewVerifier(kind, apiKey, apiSecret, webhookSecret string) (domain.WebhookVerifier, error) {
	switch kind {
	case "", KindJWT:
		secret := apiSecret
		if webhookSecret != "" {
			secret = webhookSecret
		}
		return NewJWTVerifier(apiKey, secret), nil
	case KindHMAC:
		return NewHMACVerifier(webhookSecret), nil
	default:
		return nil, fmt.Errorf("unknown webhook verifier %q", kind)
	}
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

const defaultTimestampTolerance = 5 * time.Minute

// HMACVerifier checks "v0=" HMAC-SHA256 signatures over "v0:<timestamp>:<body>".
type HMACVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACVerifier creates a verifier for the shared webhook secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret:    []byte(secret),
		tolerance: defaultTimestampTolerance,
		now:       time.Now,
	}
}

// Sign returns the signature header value for body at timestamp.
func (v *HMACVerifier) Sign(body []byte, timestamp string) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte("v0:" + timestamp + ":"))
	h.Write(body)
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

// Verify implements domain.WebhookVerifier.
func (v *HMACVerifier) Verify(body []byte, header http.Header) error {
	if len(v.secret) == 0 {
		return domain.NewSignatureError("webhook secret not configured")
	}

	signature := header.Get(constants.WebhookSignatureHeader)
	if signature == "" {
		return domain.NewSignatureError("missing webhook signature")
	}
	timestamp := header.Get(constants.WebhookTimestampHeader)
	if timestamp == "" {
		return domain.NewSignatureError("missing webhook timestamp")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.NewSignatureError("invalid webhook timestamp", err)
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew > v.tolerance || skew < -v.tolerance {
		return domain.NewSignatureError("webhook timestamp outside tolerance")
	}

	expected := strings.TrimPrefix(v.Sign(body, timestamp), "v0=")
	provided := strings.TrimPrefix(signature, "v0=")
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return domain.NewSignatureError("invalid webhook signature")
	}
	return nil
}

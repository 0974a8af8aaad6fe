// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seen records what the next handler observed.
type seen struct {
	called   bool
	captured []byte
	hasBody  bool
	body     []byte
}

func captureThrough(t *testing.T, r *http.Request) (*httptest.ResponseRecorder, *seen) {
	t.Helper()
	got := &seen{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.called = true
		got.captured, got.hasBody = GetRawBodyFromContext(r.Context())
		var err error
		got.body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	WebhookBodyCaptureMiddleware()(next).ServeHTTP(rec, r)
	return rec, got
}

func TestWebhookBodyCapture_RoomsDelivery(t *testing.T) {
	delivery := `{"event":"participant_left","room":{"name":"m-1"},"participant":{"identity":"alice#s-1"}}`
	r := httptest.NewRequest(http.MethodPost, constants.RoomsWebhookPath, strings.NewReader(delivery))

	rec, got := captureThrough(t, r)

	require.True(t, got.called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, got.hasBody)
	assert.Equal(t, delivery, string(got.captured), "signature input is the exact payload")
	assert.Equal(t, delivery, string(got.body), "the handler can still decode the body")
}

func TestWebhookBodyCapture_OtherRoutes(t *testing.T) {
	for _, path := range []string{"/meetings/m-1/join", "/webhooks/zoom", constants.RoomsWebhookPath + "/extra"} {
		t.Run(path, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"display_name":"Alice"}`))

			_, got := captureThrough(t, r)

			require.True(t, got.called)
			assert.False(t, got.hasBody)
			assert.Nil(t, got.captured)
			assert.Equal(t, `{"display_name":"Alice"}`, string(got.body))
		})
	}
}

func TestWebhookBodyCapture_SizeLimit(t *testing.T) {
	t.Run("at the limit", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), MaxWebhookBodyBytes)
		r := httptest.NewRequest(http.MethodPost, constants.RoomsWebhookPath, bytes.NewReader(payload))

		_, got := captureThrough(t, r)

		require.True(t, got.called)
		assert.Len(t, got.captured, MaxWebhookBodyBytes)
	})

	t.Run("over the limit", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), MaxWebhookBodyBytes+1)
		r := httptest.NewRequest(http.MethodPost, constants.RoomsWebhookPath, bytes.NewReader(payload))

		rec, got := captureThrough(t, r)

		assert.False(t, got.called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRawBodyFromContext_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	body, ok := GetRawBodyFromContext(r.Context())
	assert.False(t, ok)
	assert.Nil(t, body)
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// RequestIDMiddleware propagates the caller's request ID, or assigns one, to the
// context, the logs and the response headers.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(constants.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), constants.RequestIDContextID, requestID)
			ctx = logging.AppendCtx(ctx, slog.String("request_id", requestID))

			w.Header().Set(constants.RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthorizationMiddleware stores the raw Authorization header in the context.
func AuthorizationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get(constants.AuthorizationHeader); auth != "" {
				r = r.WithContext(context.WithValue(r.Context(), constants.AuthorizationContextID, auth))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthorizationFromContext returns the Authorization header captured for the request.
func AuthorizationFromContext(ctx context.Context) string {
	auth, _ := ctx.Value(constants.AuthorizationContextID).(string)
	return auth
}

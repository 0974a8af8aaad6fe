// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// AuthorizationHeader is the header name for the authorization
	AuthorizationHeader string = "authorization"

	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// XOnBehalfOfHeader is the header name for the on behalf of principal
	XOnBehalfOfHeader string = "x-on-behalf-of"

	// WebhookSignatureHeader carries the HMAC signature of a provider webhook body.
	WebhookSignatureHeader string = "X-Webhook-Signature"

	// WebhookTimestampHeader carries the unix timestamp the provider signed.
	WebhookTimestampHeader string = "X-Webhook-Timestamp"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// contextAuthorization is the type for the authorization context key
type contextAuthorization string

// AuthorizationContextID is the context ID for the authorization
const AuthorizationContextID contextAuthorization = "authorization"

// contextPrincipal is the type for the principal context key
type contextPrincipal string

// PrincipalContextID is the context ID for the principal
const PrincipalContextID contextPrincipal = "x-on-behalf-of"

// HTTP route paths that middleware needs to recognise.
const (
	LivezPath        = "/livez"
	ReadyzPath       = "/readyz"
	RoomsWebhookPath = "/webhooks/rooms"
)

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// PrincipalParser resolves the authenticated principal of a bearer token.
type PrincipalParser interface {
	ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error)
}

// SessionAPI serves the HTTP surface of the meeting session service.
type SessionAPI struct {
	service *service.MeetingSessionService
	auth    PrincipalParser
	mux     goahttp.Muxer
	decoder func(*http.Request) goahttp.Decoder
	encoder func(context.Context, http.ResponseWriter) goahttp.Encoder
}

// NewSessionAPI creates a new SessionAPI.
func NewSessionAPI(svc *service.MeetingSessionService, auth PrincipalParser, mux goahttp.Muxer) *SessionAPI {
	return &SessionAPI{
		service: svc,
		auth:    auth,
		mux:     mux,
		decoder: goahttp.RequestDecoder,
		encoder: goahttp.ResponseEncoder,
	}
}

// Mount registers the routes of the API on its muxer.
func (a *SessionAPI) Mount() {
	a.mux.Handle(http.MethodGet, constants.LivezPath, a.Livez)
	a.mux.Handle(http.MethodGet, constants.ReadyzPath, a.Readyz)
	a.mux.Handle(http.MethodPost, "/meetings", a.CreateMeeting)
	a.mux.Handle(http.MethodGet, "/meetings/{uid}", a.GetMeeting)
	a.mux.Handle(http.MethodPost, "/meetings/{uid}/end", a.EndMeeting)
	a.mux.Handle(http.MethodGet, "/meetings/{uid}/report", a.GetReport)
	a.mux.Handle(http.MethodPost, "/join/{join_code}", a.Join)
	a.mux.Handle(http.MethodPost, "/sessions/{session_id}/leave", a.Leave)
	a.mux.Handle(http.MethodPost, constants.RoomsWebhookPath, a.RoomsWebhook)
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createMeetingBody struct {
	WorkspaceUID   string    `json:"workspace_uid"`
	Title          string    `json:"title"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Capacity       int       `json:"capacity"`
	Recurrence     string    `json:"recurrence"`
}

type meetingResponse struct {
	*models.Meeting
	ActiveCount    int        `json:"active_count"`
	NextOccurrence *time.Time `json:"next_occurrence,omitempty"`
}

type joinBody struct {
	GuestName   string `json:"guest_name"`
	GuestToken  string `json:"guest_token"`
	DisplayName string `json:"display_name"`
}

type joinResponse struct {
	MeetingUID     string `json:"meeting_uid"`
	ParticipantUID string `json:"participant_uid"`
	SessionID      string `json:"session_id"`
	RoomName       string `json:"room_name"`
	Identity       string `json:"identity"`
	AccessToken    string `json:"access_token"`
	IsHost         bool   `json:"is_host"`
	GuestToken     string `json:"guest_token,omitempty"`
}

// httpStatus maps a domain error type to its HTTP status.
func httpStatus(errType domain.ErrorType) int {
	switch errType {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict, domain.ErrorTypeCapacityExceeded:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorTypeForbidden:
		return http.StatusForbidden
	case domain.ErrorTypeMeetingEnded:
		return http.StatusGone
	case domain.ErrorTypeSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (a *SessionAPI) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := a.encoder(ctx, w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "error encoding response", logging.ErrKey, err)
	}
}

func (a *SessionAPI) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	errType := domain.GetErrorType(err)
	status := httpStatus(errType)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", logging.ErrKey, err)
		message = "internal error"
	}
	a.writeJSON(ctx, w, status, errorBody{Code: errType.Code(), Message: message})
}

// decodeBody decodes the JSON request body into v. An empty body leaves v untouched.
func (a *SessionAPI) decodeBody(r *http.Request, v any) error {
	if err := a.decoder(r).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("invalid request body", err)
	}
	return nil
}

// principal returns the authenticated caller, or an empty string when the
// request carries no credentials.
func (a *SessionAPI) principal(r *http.Request) (string, error) {
	token := middleware.AuthorizationFromContext(r.Context())
	if token == "" {
		token = r.Header.Get(constants.AuthorizationHeader)
	}
	principal, err := a.auth.ParsePrincipal(r.Context(), token, slog.Default())
	if err != nil {
		if token == "" {
			return "", nil
		}
		return "", domain.NewSignatureError("invalid bearer token", err)
	}
	return principal, nil
}

// requirePrincipal is principal for endpoints that need an authenticated caller.
func (a *SessionAPI) requirePrincipal(w http.ResponseWriter, r *http.Request) (context.Context, string, bool) {
	principal, err := a.principal(r)
	if err == nil && principal == "" {
		err = domain.NewSignatureError("authentication required")
	}
	if err != nil {
		a.writeError(r.Context(), w, err)
		return nil, "", false
	}
	ctx := context.WithValue(r.Context(), constants.PrincipalContextID, principal)
	ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
	return ctx, principal, true
}

// Livez checks if the service is alive.
func (a *SessionAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz checks if the service is able to take inbound requests.
func (a *SessionAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	if !a.service.IsReady(r.Context()) {
		a.writeError(r.Context(), w, domain.NewUnavailableError("service unavailable"))
		return
	}
	_, _ = w.Write([]byte("OK\n"))
}

// CreateMeeting schedules a meeting for the caller.
func (a *SessionAPI) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	ctx, principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	var body createMeetingBody
	if err := a.decodeBody(r, &body); err != nil {
		a.writeError(ctx, w, err)
		return
	}

	meeting, err := a.service.CreateMeeting(ctx, service.CreateMeetingRequest{
		WorkspaceUID:   body.WorkspaceUID,
		Title:          body.Title,
		ScheduledStart: body.ScheduledStart,
		ScheduledEnd:   body.ScheduledEnd,
		Capacity:       body.Capacity,
		Recurrence:     body.Recurrence,
	}, principal)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusCreated, meetingResponse{Meeting: meeting})
}

// GetMeeting returns a meeting with its active participant count.
func (a *SessionAPI) GetMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	details, err := a.service.GetMeeting(ctx, a.mux.Vars(r)["uid"])
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, meetingResponse{
		Meeting:        details.Meeting,
		ActiveCount:    details.ActiveCount,
		NextOccurrence: details.NextOccurrence,
	})
}

// Join admits an authenticated user or a guest to the meeting behind the join code.
func (a *SessionAPI) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := a.principal(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}

	var body joinBody
	if err := a.decodeBody(r, &body); err != nil {
		a.writeError(ctx, w, err)
		return
	}

	result, err := a.service.Join(ctx, service.JoinRequest{
		JoinCode:    a.mux.Vars(r)["join_code"],
		UserID:      principal,
		GuestName:   body.GuestName,
		GuestToken:  body.GuestToken,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, joinResponse{
		MeetingUID:     result.MeetingUID,
		ParticipantUID: result.ParticipantUID,
		SessionID:      result.SessionUID,
		RoomName:       result.RoomName,
		Identity:       result.Identity,
		AccessToken:    result.AccessToken,
		IsHost:         result.IsHost,
		GuestToken:     result.GuestToken,
	})
}

// Leave closes one session. The session id is the capability, so no
// credentials are needed.
func (a *SessionAPI) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := a.service.Leave(ctx, a.mux.Vars(r)["session_id"]); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndMeeting hard-ends a meeting on behalf of its host.
func (a *SessionAPI) EndMeeting(w http.ResponseWriter, r *http.Request) {
	ctx, principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	meeting, err := a.service.EndMeeting(ctx, a.mux.Vars(r)["uid"], principal)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, meetingResponse{Meeting: meeting})
}

// GetReport returns the attendance report of a meeting.
func (a *SessionAPI) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	report, err := a.service.GetReport(ctx, a.mux.Vars(r)["uid"], principal)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, report)
}

// RoomsWebhook receives room provider webhook deliveries.
func (a *SessionAPI) RoomsWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := middleware.GetRawBodyFromContext(ctx)
	if !ok {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, middleware.MaxWebhookBodyBytes))
		if err != nil {
			a.writeError(ctx, w, domain.NewValidationError("failed to read webhook body", err))
			return
		}
	}

	if err := a.service.ReceiveProviderWebhook(ctx, body, r.Header); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// SessionHandler serves the request/reply subjects of the meeting session service.
type SessionHandler struct {
	sessionService *service.MeetingSessionService
}

// NewSessionHandler creates a handler backed by the given service.
func NewSessionHandler(sessionService *service.MeetingSessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// LeaveReply is the reply body of a successful leave request.
type LeaveReply struct {
	SessionUID string `json:"session_uid"`
	Left       bool   `json:"left"`
}

// ErrorReply is the reply body of a failed request.
type ErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *SessionHandler) HandlerReady() bool {
	return h.sessionService != nil && h.sessionService.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (h *SessionHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.LeaveSessionSubject: h.HandleLeave,
		models.GetReportSubject:    h.HandleGetReport,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		h.respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		errType := domain.GetErrorType(err)
		if errType == domain.ErrorTypeInternal || errType == domain.ErrorTypeUnavailable {
			slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		} else {
			slog.WarnContext(ctx, "request rejected", logging.ErrKey, err)
		}
		h.respond(ctx, msg, errorReply(err))
		return
	}

	h.respond(ctx, msg, response)
}

func (h *SessionHandler) respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "response_bytes", len(data))
}

// HandleLeave closes the session whose uid is the message payload.
func (h *SessionHandler) HandleLeave(ctx context.Context, msg domain.Message) ([]byte, error) {
	sessionUID := strings.TrimSpace(string(msg.Data()))
	ctx = logging.AppendCtx(ctx, slog.String("session_uid", sessionUID))

	if err := h.sessionService.Leave(ctx, sessionUID); err != nil {
		return nil, err
	}
	return json.Marshal(LeaveReply{SessionUID: sessionUID, Left: true})
}

// HandleGetReport replies with the attendance report of the meeting whose uid
// is the message payload.
func (h *SessionHandler) HandleGetReport(ctx context.Context, msg domain.Message) ([]byte, error) {
	meetingUID := strings.TrimSpace(string(msg.Data()))
	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meetingUID))

	principal, _ := ctx.Value(constants.PrincipalContextID).(string)
	report, err := h.sessionService.GetReport(ctx, meetingUID, principal)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal report", err)
	}
	return data, nil
}

func errorReply(err error) []byte {
	errType := domain.GetErrorType(err)
	message := err.Error()
	if errType == domain.ErrorTypeInternal {
		message = "internal error"
	}
	data, _ := json.Marshal(ErrorReply{Code: errType.Code(), Message: message})
	return data
}

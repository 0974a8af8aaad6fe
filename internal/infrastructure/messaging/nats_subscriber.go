// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// INatsSubscriber is the NATS connection interface needed to serve requests.
type INatsSubscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NatsMessage adapts a NATS message to domain.Message.
type NatsMessage struct {
	msg *nats.Msg
}

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

func (m *NatsMessage) Subject() string {
	return m.msg.Subject
}

func (m *NatsMessage) Data() []byte {
	return m.msg.Data
}

func (m *NatsMessage) Respond(data []byte) error {
	return m.msg.Respond(data)
}

func (m *NatsMessage) HasReply() bool {
	return m.msg.Reply != ""
}

// MessageContext derives the handling context of msg from parent, restoring
// the caller's trace context, request id and principal from the headers.
func MessageContext(parent context.Context, msg *nats.Msg) context.Context {
	if msg.Header == nil {
		return parent
	}
	ctx := otel.GetTextMapPropagator().Extract(parent, propagation.HeaderCarrier(http.Header(msg.Header)))

	if requestID := msg.Header.Get(constants.RequestIDHeader); requestID != "" {
		ctx = context.WithValue(ctx, constants.RequestIDContextID, requestID)
		ctx = logging.AppendCtx(ctx, slog.String(constants.RequestIDHeader, requestID))
	}
	if principal := msg.Header.Get(constants.XOnBehalfOfHeader); principal != "" {
		ctx = context.WithValue(ctx, constants.PrincipalContextID, principal)
	}
	return ctx
}

// Subscribe serves every subject with handler inside the queue group. On
// failure the subscriptions made so far are removed.
func Subscribe(ctx context.Context, conn INatsSubscriber, queue string, handler domain.MessageHandler, subjects ...string) ([]*nats.Subscription, error) {
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
			handler.HandleMessage(MessageContext(ctx, msg), NewNatsMessage(msg))
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		slog.DebugContext(ctx, "subscribed to NATS subject", "subject", subject, "queue", queue)
		subs = append(subs, sub)
	}
	return subs, nil
}

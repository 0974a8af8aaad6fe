// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/service"

type serviceMetrics struct {
	joins              metric.Int64Counter
	capacityRejections metric.Int64Counter
	sessionsClosed     metric.Int64Counter
	sessionDuration    metric.Int64Histogram
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	m := &serviceMetrics{}
	var err error
	if m.joins, err = meter.Int64Counter("meeting_session.joins",
		metric.WithDescription("Sessions opened by joins")); err != nil {
		m.joins, _ = fallback.Int64Counter("meeting_session.joins")
	}
	if m.capacityRejections, err = meter.Int64Counter("meeting_session.capacity_rejections",
		metric.WithDescription("Joins rejected because the meeting was full")); err != nil {
		m.capacityRejections, _ = fallback.Int64Counter("meeting_session.capacity_rejections")
	}
	if m.sessionsClosed, err = meter.Int64Counter("meeting_session.sessions_closed",
		metric.WithDescription("Sessions closed, by leave reason")); err != nil {
		m.sessionsClosed, _ = fallback.Int64Counter("meeting_session.sessions_closed")
	}
	if m.sessionDuration, err = meter.Int64Histogram("meeting_session.session_duration",
		metric.WithDescription("Duration of closed sessions"),
		metric.WithUnit("s")); err != nil {
		m.sessionDuration, _ = fallback.Int64Histogram("meeting_session.session_duration")
	}
	return m
}

func (m *serviceMetrics) joined(ctx context.Context, kind models.ParticipantKind) {
	m.joins.Add(ctx, 1, metric.WithAttributes(attribute.String("participant_kind", string(kind))))
}

func (m *serviceMetrics) rejected(ctx context.Context) {
	m.capacityRejections.Add(ctx, 1)
}

func (m *serviceMetrics) closed(ctx context.Context, sessions ...models.Session) {
	for _, s := range sessions {
		attrs := metric.WithAttributes(attribute.String("leave_reason", string(s.LeaveReason)))
		m.sessionsClosed.Add(ctx, 1, attrs)
		m.sessionDuration.Record(ctx, s.DurationSeconds(), attrs)
	}
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package postgres implements the repositories on PostgreSQL. Records are kept
// as JSON documents next to a revision column that fences concurrent writers
// the same way JetStream KV revisions do.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/store/postgres"

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// Schema creates the tables used by the repositories.
const Schema = `
CREATE TABLE IF NOT EXISTS meetings (
	uid        TEXT PRIMARY KEY,
	join_code  TEXT NOT NULL UNIQUE,
	revision   BIGINT NOT NULL,
	data       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
	meeting_uid     TEXT NOT NULL,
	participant_key TEXT NOT NULL,
	revision        BIGINT NOT NULL,
	data            JSONB NOT NULL,
	PRIMARY KEY (meeting_uid, participant_key)
);

CREATE TABLE IF NOT EXISTS session_refs (
	session_uid TEXT PRIMARY KEY,
	data        JSONB NOT NULL
);
`

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Connect opens a pool, checks the connection and applies Schema.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.InfoContext(ctx, "connected to postgres")
	return pool, nil
}

func startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.sql.table", table),
		),
	)
}

// mapError converts a driver error into a domain error and records it on the span.
func mapError(ctx context.Context, span trace.Span, entity string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = domain.NewNotFoundError(fmt.Sprintf("%s not found", entity), err)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		err = domain.NewConflictError(fmt.Sprintf("%s already exists", entity), err)
	default:
		slog.ErrorContext(ctx, fmt.Sprintf("postgres error on %s", entity), logging.ErrKey, err)
		err = domain.NewInternalError(fmt.Sprintf("failed to access %s in store", entity), err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func scanDocument[T any](row pgx.Row, dest *T, revision *uint64) error {
	var data []byte
	var err error
	if revision != nil {
		var rev int64
		err = row.Scan(&data, &rev)
		*revision = uint64(rev)
	} else {
		err = row.Scan(&data)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func collectDocuments[T any](rows pgx.Rows) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return nil, err
		}
		out = append(out, &entity)
	}
	return out, rows.Err()
}

// revisionMiss explains why a guarded update touched no row.
func revisionMiss(ctx context.Context, db DB, entity, existsSQL string, args ...any) error {
	var one int
	err := db.QueryRow(ctx, existsSQL, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(fmt.Sprintf("%s not found", entity))
	}
	if err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to check %s", entity), err)
	}
	return domain.NewConflictError(fmt.Sprintf("%s has been modified", entity))
}

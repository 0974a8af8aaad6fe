// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the meeting session API. It admits participants to meeting
// rooms, reconciles their sessions and serves attendance reports over HTTP
// and NATS.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/utils"
)

const gracefulShutdownSeconds = 25

func main() {
	loadDotEnv()
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
		}
	}()

	// Set up JWT validator needed to authenticate callers.
	jwtAuth, err := setupJWTAuth()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
		return
	}

	roomProvider, err := setupRoomProvider(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up room provider")
		return
	}
	verifier, err := setupWebhookVerifier(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up webhook verifier")
		return
	}
	membershipChecker, err := setupMembership(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up membership client")
		return
	}

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	repos, err := setupRepositories(ctx, env, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up storage")
		return
	}
	defer repos.close()

	var publisher domain.EventPublisher
	if natsConn != nil {
		publisher = messaging.NewMessageBuilder(natsConn)
	}

	serviceConfig := service.ServiceConfig{
		DefaultCapacity:        env.DefaultCapacity,
		SessionTTL:             env.SessionTTL,
		SweepInterval:          env.SweepInterval,
		RoomTokenTTL:           env.Rooms.TokenTTL,
		JoinRequiresMembership: env.JoinRequiresMembership,
	}
	svc := service.NewMeetingSessionService(service.Dependencies{
		Meetings:     repos.Meetings,
		Participants: repos.Participants,
		Sessions:     repos.Sessions,
		Rooms:        roomProvider,
		Webhooks:     verifier,
		Membership:   membershipChecker,
		Events:       publisher,
	}, serviceConfig)

	sweeper := service.NewSessionSweeper(svc.Reconciler(), serviceConfig.SessionTTL, serviceConfig.SweepInterval)
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		sweeper.Run(ctx)
	}()

	httpServer := setupHTTPServer(flags, newHTTPHandler(svc, jwtAuth), &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	if natsConn != nil {
		err = createNatsSubscriptions(ctx, handlers.NewSessionHandler(svc), natsConn)
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
			return
		}
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, svc, &gracefulCloseWG, cancel)
}

// createNatsSubscriptions serves the request/reply subjects of the service.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn) error {
	slog.InfoContext(ctx, "subscribing to NATS subjects", "queue", models.MeetingSessionAPIQueue)
	_, err := messaging.Subscribe(ctx, natsConn, models.MeetingSessionAPIQueue, handler,
		models.LeaveSessionSubject,
		models.GetReportSubject,
	)
	return err
}

// gracefulShutdown stops the HTTP server, the sweeper and pending background
// work, then drains NATS.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, svc *service.MeetingSessionService, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.Info("graceful shutdown started")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		// Decrement the wait group after the server has stopped serving.
		gracefulCloseWG.Done()
	}()

	// Stop the sweeper and mark NATS closes as expected.
	cancel()

	svc.Wait()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			// Skip waiting for the closed handler.
			gracefulCloseWG.Done()
		}
	}

	stopped := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("graceful shutdown completed")
	case <-ctx.Done():
		slog.With(logging.ErrKey, ctx.Err()).Error("graceful shutdown timed out")
	}
}

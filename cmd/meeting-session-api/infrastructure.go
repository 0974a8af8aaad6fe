// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/membership"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/rooms"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/store/postgres"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
)

const (
	natsDrainTimeout     = 15 * time.Second
	natsReconnectWait    = 2 * time.Second
	roomProviderTimeout  = 10 * time.Second
	membershipAPITimeout = 10 * time.Second
	kvBucketHistory      = 1
)

// repositories are the storage adapters of the service.
type repositories struct {
	Meetings     domain.MeetingRepository
	Participants domain.ParticipantRepository
	Sessions     domain.SessionIndex
	close        func()
}

// setupJWTAuth configures JWT authentication for the service
func setupJWTAuth() (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            os.Getenv("JWKS_URL"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupNATS connects to NATS. The wait group is released once the connection
// is closed, and an unexpected close stops the service.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	if env.NatsURL == "" {
		slog.InfoContext(ctx, "NATS_URL not set, running without NATS")
		return nil, nil
	}

	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-meeting-session-service"),
		nats.DrainTimeout(natsDrainTimeout),
		nats.ReconnectWait(natsReconnectWait),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.InfoContext(ctx, "NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject, "queue", sub.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected as part of graceful shutdown.
				slog.Info("NATS connection closed gracefully")
			} else {
				slog.Error("NATS connection closed unexpectedly")
				done <- os.Interrupt
			}
			gracefulCloseWG.Done()
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, err
	}
	return natsConn, nil
}

// setupRepositories opens the configured storage backend.
func setupRepositories(ctx context.Context, env environment, natsConn *nats.Conn) (*repositories, error) {
	codec, err := store.NewCodec(env.StoreCodec)
	if err != nil {
		return nil, err
	}

	switch env.StoreBackend {
	case storeBackendNats:
		if natsConn == nil {
			return nil, errors.New("the nats store backend needs NATS_URL")
		}
		kvs, err := getKeyValueStores(ctx, natsConn)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "using NATS key-value storage", "codec", codec.Name())
		return &repositories{
			Meetings:     store.NewNatsMeetingRepository(kvs[store.KVStoreNameMeetings], kvs[store.KVStoreNameJoinCodes], codec),
			Participants: store.NewNatsParticipantRepository(kvs[store.KVStoreNameParticipants], codec),
			Sessions:     store.NewNatsSessionIndex(kvs[store.KVStoreNameSessionRefs], codec),
			close:        func() {},
		}, nil

	case storeBackendPostgres:
		pool, err := postgres.Connect(ctx, env.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "using PostgreSQL storage")
		return &repositories{
			Meetings:     postgres.NewMeetingRepository(pool),
			Participants: postgres.NewParticipantRepository(pool),
			Sessions:     postgres.NewSessionIndex(pool),
			close:        pool.Close,
		}, nil

	default:
		slog.WarnContext(ctx, "using in-memory storage, state is lost on restart", "codec", codec.Name())
		return &repositories{
			Meetings: store.NewNatsMeetingRepository(
				store.NewMemoryKeyValue(store.KVStoreNameMeetings),
				store.NewMemoryKeyValue(store.KVStoreNameJoinCodes),
				codec,
			),
			Participants: store.NewNatsParticipantRepository(store.NewMemoryKeyValue(store.KVStoreNameParticipants), codec),
			Sessions:     store.NewNatsSessionIndex(store.NewMemoryKeyValue(store.KVStoreNameSessionRefs), codec),
			close:        func() {},
		}, nil
	}
}

// getKeyValueStores binds every bucket the service needs, creating missing ones.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (map[string]store.INatsKeyValue, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	kvs := make(map[string]store.INatsKeyValue, len(store.BucketNames))
	for _, bucket := range store.BucketNames {
		kv, err := js.KeyValue(ctx, bucket)
		if errors.Is(err, jetstream.ErrBucketNotFound) {
			slog.InfoContext(ctx, "creating NATS KV bucket", "bucket", bucket)
			kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:  bucket,
				History: kvBucketHistory,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("binding KV bucket %s: %w", bucket, err)
		}
		kvs[bucket] = kv
	}
	return kvs, nil
}

// setupRoomProvider returns the provider client, or a token-only provider when
// no provider URL is configured.
func setupRoomProvider(ctx context.Context, env environment) (domain.RoomProvider, error) {
	if env.Rooms.URL == "" {
		slog.WarnContext(ctx, "ROOM_PROVIDER_URL not set, rooms are not managed")
		return rooms.NewLocalProvider(env.Rooms.APIKey, env.Rooms.APISecret, env.Rooms.TokenTTL)
	}
	return rooms.NewClient(rooms.Config{
		BaseURL:   env.Rooms.URL,
		APIKey:    env.Rooms.APIKey,
		APISecret: env.Rooms.APISecret,
		TokenTTL:  env.Rooms.TokenTTL,
		Timeout:   roomProviderTimeout,
	})
}

// setupWebhookVerifier builds the verifier of provider webhook deliveries.
func setupWebhookVerifier(env environment) (domain.WebhookVerifier, error) {
	return webhook.NewVerifier(env.Webhook.Verifier, env.Rooms.APIKey, env.Rooms.APISecret, env.Webhook.Secret)
}

// setupMembership returns the workspace membership checker. Without a
// configured client every caller is treated as a member.
func setupMembership(ctx context.Context, env environment) (domain.MembershipChecker, error) {
	if env.Membership.ClientID == "" || env.Membership.BaseURL == "" {
		slog.InfoContext(ctx, "membership API not configured, skipping workspace membership checks")
		return membership.AllowAll{}, nil
	}
	return membership.NewClient(membership.Config{
		BaseURL:     env.Membership.BaseURL,
		ClientID:    env.Membership.ClientID,
		PrivateKey:  env.Membership.PrivateKey,
		Auth0Domain: env.Membership.Auth0Domain,
		Audience:    env.Membership.Audience,
		Timeout:     membershipAPITimeout,
	})
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/pkg/constants"
)

// Storage backends accepted by STORE_BACKEND.
const (
	storeBackendNats     = "nats"
	storeBackendPostgres = "postgres"
	storeBackendMemory   = "memory"
)

// flags are the command line flags for the meeting session service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the meeting session service.
type environment struct {
	Port                   string
	NatsURL                string
	StoreBackend           string
	StoreCodec             string
	DatabaseURL            string
	DefaultCapacity        int
	SessionTTL             time.Duration
	SweepInterval          time.Duration
	JoinRequiresMembership bool
	Rooms                  roomsConfig
	Webhook                webhookConfig
	Membership             membershipConfig
}

// roomsConfig holds the media-room provider configuration.
type roomsConfig struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// webhookConfig selects how provider webhooks are verified.
type webhookConfig struct {
	Verifier string
	Secret   string
}

// membershipConfig holds the workspace membership API configuration.
type membershipConfig struct {
	BaseURL     string
	ClientID    string
	PrivateKey  string
	Auth0Domain string
	Audience    string
}

// parseFlags parses command line flags for the meeting session service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// loadDotEnv reads a .env file from the working directory when there is one.
// Variables already set in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		slog.With(logging.ErrKey, err).Warn("error loading .env file")
	}
}

// parseEnv parses environment variables for the meeting session service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	storeBackend := getEnvOrDefault("STORE_BACKEND", storeBackendNats)
	switch storeBackend {
	case storeBackendNats, storeBackendPostgres, storeBackendMemory:
	default:
		slog.Error("STORE_BACKEND must be one of nats, postgres or memory", "value", storeBackend)
		os.Exit(1)
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" && storeBackend == storeBackendNats {
		natsURL = "nats://localhost:4222"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && storeBackend == storeBackendPostgres {
		slog.Error("DATABASE_URL environment variable is required for the postgres backend")
		os.Exit(1)
	}

	return environment{
		Port:                   port,
		NatsURL:                natsURL,
		StoreBackend:           storeBackend,
		StoreCodec:             os.Getenv("STORE_CODEC"),
		DatabaseURL:            databaseURL,
		DefaultCapacity:        getIntOrDefault("DEFAULT_MEETING_CAPACITY", constants.DefaultMeetingCapacity),
		SessionTTL:             getDurationOrDefault("SESSION_TTL", constants.DefaultSessionTTL),
		SweepInterval:          getDurationOrDefault("SESSION_SWEEP_INTERVAL", constants.DefaultSessionSweepInterval),
		JoinRequiresMembership: os.Getenv("JOIN_REQUIRES_MEMBERSHIP") == "true",
		Rooms:                  parseRoomsConfig(),
		Webhook: webhookConfig{
			Verifier: getEnvOrDefault("WEBHOOK_VERIFIER", webhook.KindJWT),
			Secret:   os.Getenv("WEBHOOK_SECRET"),
		},
		Membership: parseMembershipConfig(),
	}
}

// parseRoomsConfig parses the room provider configuration. The key pair
// defaults to the provider's development credentials.
func parseRoomsConfig() roomsConfig {
	apiKey := os.Getenv("ROOM_PROVIDER_API_KEY")
	apiSecret := os.Getenv("ROOM_PROVIDER_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		slog.Warn("ROOM_PROVIDER_API_KEY or ROOM_PROVIDER_API_SECRET not set, using development credentials")
		apiKey, apiSecret = "devkey", "secret"
	}

	return roomsConfig{
		URL:       os.Getenv("ROOM_PROVIDER_URL"),
		APIKey:    apiKey,
		APISecret: apiSecret,
		TokenTTL:  getDurationOrDefault("ROOM_TOKEN_TTL", constants.DefaultRoomTokenTTL),
	}
}

// parseMembershipConfig parses the membership API configuration. Membership
// checks are off when no client is configured.
func parseMembershipConfig() membershipConfig {
	return membershipConfig{
		BaseURL:     os.Getenv("MEMBERSHIP_API_URL"),
		ClientID:    os.Getenv("MEMBERSHIP_CLIENT_ID"),
		PrivateKey:  os.Getenv("MEMBERSHIP_CLIENT_PRIVATE_KEY"),
		Auth0Domain: getEnvOrDefault("MEMBERSHIP_AUTH0_DOMAIN", "linuxfoundation-dev.auth0.com"),
		Audience:    os.Getenv("MEMBERSHIP_AUDIENCE"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid integer", "key", key, "value", value)
		os.Exit(1)
	}
	return intValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid duration", "key", key, "value", value)
		os.Exit(1)
	}
	return duration
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	roomServicePath  = "/twirp/livekit.RoomService/"
	adminTokenTTL    = 10 * time.Minute
	adminTokenLeeway = 30 * time.Second

	// Rooms left empty are closed by the provider after this many seconds.
	defaultEmptyTimeout = 300
)

// Config holds the room provider configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
	Timeout   time.Duration
}

// Client implements domain.RoomProvider against the provider's Twirp room service.
type Client struct {
	httpClient *http.Client
	issuer     *TokenIssuer
	config     Config
}

// adminTokenSource implements oauth2.TokenSource with self-signed admin tokens.
type adminTokenSource struct {
	issuer *TokenIssuer
}

// Token implements the oauth2.TokenSource interface
func (a *adminTokenSource) Token() (*oauth2.Token, error) {
	token, expiry, err := a.issuer.AdminToken(adminTokenTTL)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry.Add(-adminTokenLeeway),
	}, nil
}

// NewClient creates a room provider client whose requests carry a cached admin token.
func NewClient(config Config) (*Client, error) {
	issuer, err := NewTokenIssuer(config.APIKey, config.APISecret)
	if err != nil {
		return nil, err
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("room provider url is required")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, &adminTokenSource{issuer: issuer}))
	httpClient.Timeout = config.Timeout

	return &Client{
		httpClient: httpClient,
		issuer:     issuer,
		config:     config,
	}, nil
}

type createRoomRequest struct {
	Name            string `json:"name"`
	EmptyTimeout    uint32 `json:"empty_timeout,omitempty"`
	MaxParticipants uint32 `json:"max_participants,omitempty"`
}

type deleteRoomRequest struct {
	Room string `json:"room"`
}

type twirpError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// EnsureRoom creates the room. The provider returns the existing room when it is already open.
func (c *Client) EnsureRoom(ctx context.Context, room string) error {
	return c.call(ctx, "CreateRoom", createRoomRequest{Name: room, EmptyTimeout: defaultEmptyTimeout})
}

// DeleteRoom removes the room. A room that no longer exists is not an error.
func (c *Client) DeleteRoom(ctx context.Context, room string) error {
	err := c.call(ctx, "DeleteRoom", deleteRoomRequest{Room: room})
	if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
		return nil
	}
	return err
}

// IssueAccessToken signs a participant token locally.
func (c *Client) IssueAccessToken(_ context.Context, req domain.AccessTokenRequest) (string, error) {
	if req.TTL == 0 {
		req.TTL = c.config.TokenTTL
	}
	return c.issuer.AccessToken(req)
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.NewInternalError("failed to marshal room service request", err)
	}

	url := c.config.BaseURL + roomServicePath + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.NewInternalError("failed to create room service request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.DebugContext(ctx, "room service request", "method", method, "body", string(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.NewUnavailableError("room service request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewUnavailableError("failed to read room service response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "room service error response",
			"method", method,
			"status_code", resp.StatusCode,
			"body", string(respBody),
		)
		return mapTwirpError(resp.StatusCode, respBody)
	}
	return nil
}

func mapTwirpError(statusCode int, body []byte) error {
	var te twirpError
	_ = json.Unmarshal(body, &te)
	msg := te.Msg
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	switch {
	case te.Code == "not_found" || statusCode == http.StatusNotFound:
		return domain.NewNotFoundError("room not found: " + msg)
	case te.Code == "unauthenticated" || te.Code == "permission_denied" ||
		statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.NewInternalError("room service rejected credentials: " + msg)
	case te.Code == "invalid_argument" || te.Code == "malformed" || statusCode == http.StatusBadRequest:
		return domain.NewValidationError("room service rejected request: " + msg)
	default:
		return domain.NewUnavailableError(fmt.Sprintf("room service error (%d): %s", statusCode, msg))
	}
}

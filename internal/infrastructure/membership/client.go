// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package membership answers workspace membership questions for join gating.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const tokenExpiryLeeway = 60 * time.Second

// Config holds the membership API configuration.
type Config struct {
	BaseURL     string
	ClientID    string
	PrivateKey  string // RSA private key in PEM format
	Auth0Domain string
	Audience    string
	Timeout     time.Duration
}

// Client implements domain.MembershipChecker over the workspace membership API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// auth0TokenSource implements oauth2.TokenSource using the Auth0 client credentials grant.
type auth0TokenSource struct {
	ctx        context.Context
	authConfig *authentication.Authentication
	audience   string
}

// Token implements the oauth2.TokenSource interface
func (a *auth0TokenSource) Token() (*oauth2.Token, error) {
	tokenSet, err := a.authConfig.OAuth.LoginWithClientCredentials(a.ctx, oauth.LoginWithClientCredentialsRequest{
		Audience: a.audience,
	}, oauth.IDTokenValidationOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get token from Auth0: %w", err)
	}

	return &oauth2.Token{
		AccessToken: tokenSet.AccessToken,
		TokenType:   tokenSet.TokenType,
		Expiry:      time.Now().Add(time.Duration(tokenSet.ExpiresIn)*time.Second - tokenExpiryLeeway),
	}, nil
}

// NewClient creates a membership client authenticated with a private key assertion.
func NewClient(config Config) (*Client, error) {
	if config.PrivateKey == "" {
		return nil, fmt.Errorf("membership client private key is required")
	}

	ctx := context.Background()
	authConfig, err := authentication.New(
		ctx,
		config.Auth0Domain,
		authentication.WithClientID(config.ClientID),
		authentication.WithClientAssertion(config.PrivateKey, "RS256"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Auth0 client: %w", err)
	}

	return newClient(config, &auth0TokenSource{
		ctx:        ctx,
		authConfig: authConfig,
		audience:   config.Audience,
	}), nil
}

func newClient(config Config, source oauth2.TokenSource) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, source))
	httpClient.Timeout = config.Timeout

	return &Client{httpClient: httpClient, config: config}
}

type membershipResponse struct {
	Member bool   `json:"member"`
	Role   string `json:"role,omitempty"`
}

// IsMember reports whether principal belongs to the workspace.
func (c *Client) IsMember(ctx context.Context, workspaceUID, principal string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/workspaces/%s/members/%s",
		c.config.BaseURL, url.PathEscape(workspaceUID), url.PathEscape(principal))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, domain.NewInternalError("failed to create membership request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, domain.NewUnavailableError("membership service request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, domain.NewUnavailableError("failed to read membership response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		slog.ErrorContext(ctx, "membership service error response",
			"status_code", resp.StatusCode,
			"body", string(body),
		)
		return false, domain.NewUnavailableError(fmt.Sprintf("membership service returned %d", resp.StatusCode))
	}

	var result membershipResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, domain.NewInternalError("failed to parse membership response", err)
	}
	return result.Member, nil
}

// AllowAll admits every principal. It is used when no membership API is configured.
type AllowAll struct{}

// IsMember always reports true.
func (AllowAll) IsMember(context.Context, string, string) (bool, error) {
	return true, nil
}

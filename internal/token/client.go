// Package token exchanges an authorization code for tokens at the identity
// provider, authenticating with a signed JWT client assertion.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/serviceerr"
)

// maxErrorBody limits how much of a failed response ends up in the logs.
const maxErrorBody = 4 << 10

// AssertionSigner creates client assertions for an audience.
type AssertionSigner interface {
	Sign(audience string) (string, error)
}

type Client struct {
	httpClient    *http.Client
	signer        AssertionSigner
	tokenURL      string
	clientID      string
	assertionType string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithAssertionType overrides the client_assertion_type form value.
func WithAssertionType(assertionType string) Option {
	return func(cl *Client) {
		if assertionType != "" {
			cl.assertionType = assertionType
		}
	}
}

func NewClient(tokenURL, clientID string, signer AssertionSigner, opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		signer:        signer,
		tokenURL:      tokenURL,
		clientID:      clientID,
		assertionType: oidc.ClientAssertionTypeJWTAssertion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Exchange redeems the authorization code. A fresh client assertion with the
// token URL as audience is signed for every call. The request is made once.
func (c *Client) Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (oidc.AccessTokenResponse, error) {
	assertion, err := c.signer.Sign(c.tokenURL)
	if err != nil {
		return oidc.AccessTokenResponse{}, fmt.Errorf("signing client assertion: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.clientID)
	data.Set("client_assertion_type", c.assertionType)
	data.Set("client_assertion", assertion)
	data.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return oidc.AccessTokenResponse{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oidc.AccessTokenResponse{}, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("executing token request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slogctx.Error(ctx, "Token request failed", "status", resp.StatusCode, "body", string(body))

		return oidc.AccessTokenResponse{}, serviceerr.New(serviceerr.ErrUpstream, fmt.Sprintf("unexpected status code from token endpoint: %d", resp.StatusCode))
	}

	var tokens oidc.AccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return oidc.AccessTokenResponse{}, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("decoding token response: %w", err))
	}

	if tokens.AccessToken == "" {
		return oidc.AccessTokenResponse{}, serviceerr.New(serviceerr.ErrUpstream, "token response does not contain an access token")
	}

	slogctx.Debug(ctx, "Exchanged authorization code", "token_type", tokens.TokenType, "expires_in", tokens.ExpiresIn)

	return tokens, nil
}

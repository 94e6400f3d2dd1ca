// Package userinfo resolves the identity of the logged in user from the
// provider's user-info endpoint.
//
// The endpoint answers with a signed JWT. By default its claims are read
// without checking the signature, relying on the TLS connection to the
// provider for authenticity. WithKeySet enables verification against the
// provider's JWKS.
package userinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/serviceerr"
)

const (
	maxBodySize  = 1 << 20
	maxErrorBody = 4 << 10

	keySetCacheKey = "jwks"
	keySetTTL      = time.Hour
)

var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
}

// Claims are the identity claims of the user.
type Claims map[string]any

type Resolver struct {
	httpClient  *http.Client
	userInfoURL string
	jwksURL     string
	keySets     *cache.Cache
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithKeySet verifies the user-info JWT against the key set published at
// jwksURL. The key set is cached for an hour.
func WithKeySet(jwksURL string) Option {
	return func(r *Resolver) { r.jwksURL = jwksURL }
}

func NewResolver(userInfoURL string, opts ...Option) *Resolver {
	r := &Resolver{
		httpClient:  http.DefaultClient,
		userInfoURL: userInfoURL,
		keySets:     cache.New(keySetTTL, keySetTTL),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Fetch calls the user-info endpoint with the access token as bearer token
// and returns the claims of the response.
func (r *Resolver) Fetch(ctx context.Context, accessToken string) (Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("executing user info request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("reading user info response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		slogctx.Error(ctx, "User info request failed", "status", resp.StatusCode, "body", errorBody(body))
		return nil, serviceerr.New(serviceerr.ErrUpstream, fmt.Sprintf("unexpected status code from user info endpoint: %d", resp.StatusCode))
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		var claims Claims
		if err := json.Unmarshal(body, &claims); err != nil {
			return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("decoding user info response: %w", err))
		}
		return claims, nil
	}

	return r.parseJWT(ctx, strings.TrimSpace(string(body)))
}

// errorBody truncates a provider error body for logging.
func errorBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	return string(body)
}

func (r *Resolver) parseJWT(ctx context.Context, raw string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, signatureAlgorithms)
	if err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("parsing user info jwt: %w", err))
	}

	var claims Claims
	if r.jwksURL == "" {
		if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
			return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("decoding user info claims: %w", err))
		}
		return claims, nil
	}

	keySet, err := r.keySet(ctx)
	if err != nil {
		return nil, err
	}

	if err := tok.Claims(keySet, &claims); err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("verifying user info jwt: %w", err))
	}

	return claims, nil
}

func (r *Resolver) keySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	if v, ok := r.keySets.Get(keySetCacheKey); ok {
		return v.(*jose.JSONWebKeySet), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating jwks request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("executing jwks request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slogctx.Error(ctx, "JWKS request failed", "status", resp.StatusCode)
		return nil, serviceerr.New(serviceerr.ErrUpstream, fmt.Sprintf("unexpected status code from jwks endpoint: %d", resp.StatusCode))
	}

	keySet := new(jose.JSONWebKeySet)
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(keySet); err != nil {
		return nil, errors.Join(serviceerr.ErrUpstream, fmt.Errorf("decoding jwks: %w", err))
	}

	r.keySets.SetDefault(keySetCacheKey, keySet)

	return keySet, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == "application/json"
}

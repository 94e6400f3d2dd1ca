// Package login runs the authorization code flow with PKCE against the
// identity provider. Authorize starts a login and stores its state under an
// opaque session id; Authenticate finishes it, exchanging the code for tokens
// and resolving the user's claims.
package login

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/esignet-login/internal/clientauth"
	"github.com/openkcm/esignet-login/internal/origin"
	"github.com/openkcm/esignet-login/internal/pkce"
	"github.com/openkcm/esignet-login/internal/serviceerr"
	"github.com/openkcm/esignet-login/internal/session"
	"github.com/openkcm/esignet-login/internal/token"
	"github.com/openkcm/esignet-login/internal/userinfo"
)

// Random generates the secrets of a login.
type Random interface {
	SessionID() string
	CSRFToken() string
	PKCE() pkce.PKCE
}

type Manager struct {
	cfg      Config
	hosts    *origin.Registry
	store    session.Store
	random   Random
	tokens   *token.Client
	userInfo *userinfo.Resolver

	httpClient *http.Client
	signerOpts []clientauth.Option
}

type Option func(*Manager)

// WithHTTPClient sets the client used for the token and user-info endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

func WithRandom(r Random) Option {
	return func(m *Manager) {
		if r != nil {
			m.random = r
		}
	}
}

func WithSignerOptions(opts ...clientauth.Option) Option {
	return func(m *Manager) { m.signerOpts = append(m.signerOpts, opts...) }
}

// NewManager validates the configuration and parses the private key. All
// missing values are reported in a single configuration error.
func NewManager(cfg Config, hosts *origin.Registry, store session.Store, opts ...Option) (*Manager, error) {
	missing := cfg.missing()
	if hosts == nil {
		missing = append(missing, "host_configs")
	}
	if store == nil {
		missing = append(missing, "store")
	}
	if len(missing) > 0 {
		return nil, configurationError(missing)
	}

	m := &Manager{
		cfg:        cfg.withDefaults(),
		hosts:      hosts,
		store:      store,
		random:     pkce.Source{},
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	signer, err := clientauth.NewSigner(m.cfg.ClientID, m.cfg.PrivateKey, m.signerOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating client assertion signer: %w", err)
	}

	m.tokens = token.NewClient(m.cfg.TokenURL, m.cfg.ClientID, signer,
		token.WithHTTPClient(m.httpClient),
		token.WithAssertionType(m.cfg.ClientAssertionType),
	)

	resolverOpts := []userinfo.Option{userinfo.WithHTTPClient(m.httpClient)}
	if m.cfg.UserInfoJWKSURL != "" {
		resolverOpts = append(resolverOpts, userinfo.WithKeySet(m.cfg.UserInfoJWKSURL))
	}
	m.userInfo = userinfo.NewResolver(m.cfg.UserInfoURL, resolverOpts...)

	return m, nil
}

// Authorize starts a login for the given origin. The returned URL sends the
// browser to the identity provider; the session id must be presented again
// to Authenticate together with the code and state from the callback.
func (m *Manager) Authorize(ctx context.Context, requestOrigin, referer string) (Response[AuthorizeData], error) {
	ctx = slogctx.With(ctx, "origin", requestOrigin)

	redirectURI, err := m.hosts.Resolve(requestOrigin)
	if err != nil {
		slogctx.Warn(ctx, "Rejected authorization for unknown origin")
		return Response[AuthorizeData]{}, serviceerr.New(serviceerr.ErrInvalidOrigin, "invalid origin: "+requestOrigin)
	}

	csrfToken := m.random.CSRFToken()
	challenge := m.random.PKCE()
	sessionID := m.random.SessionID()

	record := session.Record{
		CSRFToken:    csrfToken,
		CodeVerifier: challenge.Verifier,
		RedirectURI:  redirectURI,
	}
	if err := m.store.Put(ctx, sessionID, record, m.cfg.SessionTTL); err != nil {
		return Response[AuthorizeData]{}, fmt.Errorf("storing session: %w", err)
	}

	authURL := m.authURL([][2]string{
		{"client_id", m.cfg.ClientID},
		{"response_type", "code"},
		{"redirect_uri", redirectURI},
		{"code_challenge", challenge.Challenge},
		{"code_challenge_method", challenge.Method},
		{"scope", m.cfg.Scope},
		{"state", csrfToken},
	})

	slogctx.Info(ctx, "Started login", "redirect_uri", redirectURI)

	return ok(MessageAuthorize, AuthorizeData{
		AuthURL:    authURL,
		SessionID:  sessionID,
		UTMReferer: referer,
		UTMSource:  requestOrigin,
	}), nil
}

// Authenticate finishes the login of sessionID. The session is consumed by
// the first call, so a failed attempt requires a new Authorize.
func (m *Manager) Authenticate(ctx context.Context, sessionID, code, csrfToken string) (Response[userinfo.Claims], error) {
	if err := validateAuthenticate(sessionID, code, csrfToken); err != nil {
		return Response[userinfo.Claims]{}, err
	}

	record, err := m.store.Take(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Rejected authentication for unknown or expired session")
			return Response[userinfo.Claims]{}, serviceerr.ErrInvalidSession
		}
		return Response[userinfo.Claims]{}, fmt.Errorf("loading session: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.CSRFToken), []byte(csrfToken)) != 1 {
		slogctx.Warn(ctx, "Rejected authentication with mismatching CSRF token")
		return Response[userinfo.Claims]{}, serviceerr.ErrInvalidCSRFToken
	}

	tokens, err := m.tokens.Exchange(ctx, code, record.RedirectURI, record.CodeVerifier)
	if err != nil {
		return Response[userinfo.Claims]{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	claims, err := m.userInfo.Fetch(ctx, tokens.AccessToken)
	if err != nil {
		return Response[userinfo.Claims]{}, fmt.Errorf("fetching user info: %w", err)
	}

	slogctx.Info(ctx, "User authenticated", "redirect_uri", record.RedirectURI)

	return ok(MessageAuthenticated, claims), nil
}

func (m *Manager) AddHost(requestOrigin, redirectURI string) error {
	return m.hosts.Add(requestOrigin, redirectURI)
}

func (m *Manager) RemoveHost(requestOrigin string) {
	m.hosts.Remove(requestOrigin)
}

func (m *Manager) Hosts() []origin.HostConfig {
	return m.hosts.Hosts()
}

// authURL appends the parameters in the given order. Values are query
// escaped with ':' and '/' kept literal.
func (m *Manager) authURL(params [][2]string) string {
	var b strings.Builder
	b.WriteString(m.cfg.AuthorizeURL)
	if strings.Contains(m.cfg.AuthorizeURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}

	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(escape(p[1]))
	}

	return b.String()
}

var unescapeReplacer = strings.NewReplacer("%3A", ":", "%2F", "/")

func escape(v string) string {
	return unescapeReplacer.Replace(url.QueryEscape(v))
}

func validateAuthenticate(sessionID, code, csrfToken string) error {
	var problems []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"session_id", sessionID},
		{"auth_code", code},
		{"csrf_token", csrfToken},
	} {
		if f.value == "" {
			problems = append(problems, fmt.Sprintf("The field '%s' is required.", f.name))
		}
	}

	if len(problems) == 0 {
		return nil
	}

	return serviceerr.New(serviceerr.ErrInvalidRequest, strings.Join(problems, ", "))
}

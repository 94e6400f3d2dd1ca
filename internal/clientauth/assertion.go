// Package clientauth builds the signed JWT client assertion used to
// authenticate at the token endpoint (RFC 7523, private_key_jwt).
package clientauth

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/openkcm/esignet-login/internal/serviceerr"
)

// AssertionLifetime is the validity of a client assertion.
const AssertionLifetime = 24 * time.Hour

var ErrNotRSA = errors.New("only RSA keys are supported")

type Signer struct {
	clientID string
	key      *jose.JSONWebKey
	now      func() time.Time
}

type Option func(*Signer)

// WithClock overrides the time source used for the iat and exp claims.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner parses the base64 encoded JWK once so that every token exchange
// only pays for the signature.
func NewSigner(clientID, privateKey string, opts ...Option) (*Signer, error) {
	if clientID == "" {
		return nil, serviceerr.New(serviceerr.ErrInvalidArgument, "client id must not be empty")
	}

	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	s := &Signer{
		clientID: clientID,
		key:      key,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// Sign returns a compact RS256 JWT with iss and sub set to the client id
// and aud set to the given audience, usually the token endpoint URL.
func (s *Signer) Sign(audience string) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: s.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := s.now()
	claims := jwt.Claims{
		Issuer:   s.clientID,
		Subject:  s.clientID,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(AssertionLifetime)),
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing client assertion: %w", err)
	}

	return token, nil
}

// SignClientAssertion parses the key and signs a single assertion.
func SignClientAssertion(clientID, audience, privateKey string) (string, error) {
	s, err := NewSigner(clientID, privateKey)
	if err != nil {
		return "", err
	}

	return s.Sign(audience)
}

// ParsePrivateKey decodes a base64 encoded JWK and makes sure it holds an RSA
// private key.
func ParsePrivateKey(privateKey string) (*jose.JSONWebKey, error) {
	data, err := decodeBase64(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, invalidKey(fmt.Errorf("decoding base64: %w", err))
	}

	var key jose.JSONWebKey
	if err := key.UnmarshalJSON(data); err != nil {
		return nil, invalidKey(fmt.Errorf("parsing jwk: %w", err))
	}

	if key.IsPublic() {
		return nil, invalidKey(errors.New("jwk does not contain a private key"))
	}

	if _, ok := key.Key.(*rsa.PrivateKey); !ok {
		return nil, invalidKey(fmt.Errorf("%w, got %T", ErrNotRSA, key.Key))
	}

	return &key, nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty key")
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}

	return nil, errors.New("illegal base64 data")
}

func invalidKey(err error) error {
	return errors.Join(serviceerr.New(serviceerr.ErrInvalidArgument, "failed to parse JWK private key"), err)
}

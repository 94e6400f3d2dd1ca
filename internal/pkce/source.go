// Package pkce generates the random values of the authorization code flow:
// session ids, CSRF tokens and RFC 7636 code verifiers and challenges.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"

	"github.com/zitadel/oidc/v3/pkg/oidc"
)

const MethodS256 = string(oidc.CodeChallengeMethodS256)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	sessionIDLength = 32 // Entropy E = L * log2(62) = 32 * log2(62) = 190.5 bits
	csrfTokenLength = 24
	verifierBytes   = 32
)

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// Source is safe for concurrent use; all randomness comes from crypto/rand.
type Source struct{}

func (p Source) randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return b
}

// RandomString returns n characters drawn uniformly from [A-Za-z0-9].
func (p Source) RandomString(n int) string {
	if n <= 0 {
		return ""
	}

	limit := big.NewInt(int64(len(alphabet)))
	ret := make([]byte, n)
	for i := range n {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("pkce: reading random source: " + err.Error())
		}
		ret[i] = alphabet[num.Int64()]
	}

	return string(ret)
}

func (p Source) SessionID() string {
	return p.RandomString(sessionIDLength)
}

func (p Source) CSRFToken() string {
	return p.RandomString(csrfTokenLength)
}

// Verifier returns 32 random bytes encoded as unpadded base64url (43 characters).
func (p Source) Verifier() string {
	return base64.RawURLEncoding.EncodeToString(p.randBytes(verifierBytes))
}

// Challenge derives the S256 code challenge of the verifier.
func (p Source) Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (p Source) PKCE() PKCE {
	verifier := p.Verifier()

	return PKCE{
		Verifier:  verifier,
		Challenge: p.Challenge(verifier),
		Method:    MethodS256,
	}
}

package pkce

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

func TestSource_PKCE(t *testing.T) {
	p := Source{}
	pkce := p.PKCE()
	assert.NotEmpty(t, pkce.Verifier, "Empty pkce verifier")
	assert.NotEmpty(t, pkce.Challenge, "Empty pkce challenge")
	assert.Equal(t, MethodS256, pkce.Method, "Unexpected PKCE method")
	assert.Equal(t, p.Challenge(pkce.Verifier), pkce.Challenge, "Challenge does not match verifier")
}

func TestSource_Verifier(t *testing.T) {
	p := Source{}
	verifier := p.Verifier()

	assert.Len(t, verifier, 43)
	assert.NotContains(t, verifier, "=")

	raw, err := base64.RawURLEncoding.DecodeString(verifier)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	assert.NotEqual(t, verifier, p.Verifier(), "Two verifiers must differ")
}

func TestSource_Challenge(t *testing.T) {
	p := Source{}

	tests := []struct {
		name     string
		verifier string
		want     string
	}{
		{
			// RFC 7636, Appendix B
			name:     "RFC 7636 example",
			verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
			want:     "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		},
		{
			name:     "Empty verifier",
			verifier: "",
			want:     "47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Challenge(tt.verifier)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, p.Challenge(tt.verifier), "Challenge must be deterministic")
			assert.Equal(t, oidc.NewSHACodeChallenge(tt.verifier), got)
		})
	}

	assert.NotEqual(t, p.Challenge(p.Verifier()), p.Challenge(p.Verifier()))
}

func TestSource_RandomString(t *testing.T) {
	p := Source{}

	for _, n := range []int{0, 1, 24, 32, 100} {
		s := p.RandomString(n)
		assert.Len(t, s, n)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
		}
	}

	assert.Empty(t, p.RandomString(-1))
	assert.NotEqual(t, p.RandomString(32), p.RandomString(32))
}

func TestSource_RandomStringDistribution(t *testing.T) {
	p := Source{}

	// 62 symbols * 200 expected hits each; every symbol must show up.
	seen := make(map[rune]int)
	for _, r := range p.RandomString(len(alphabet) * 200) {
		seen[r]++
	}

	assert.Len(t, seen, len(alphabet))
}

func TestSource_SessionIDAndCSRFToken(t *testing.T) {
	p := Source{}

	assert.Len(t, p.SessionID(), 32)
	assert.Len(t, p.CSRFToken(), 24)
	assert.NotEqual(t, p.SessionID(), p.SessionID())
	assert.NotEqual(t, p.CSRFToken(), p.CSRFToken())
}

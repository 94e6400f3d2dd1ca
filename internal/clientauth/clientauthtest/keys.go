// Package clientauthtest provides keys for tests of the client assertion flow.
package clientauthtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

const KeyID = "test-key-id"

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
	rsaErr  error
)

// RSAKey returns a process wide 2048 bit RSA key to keep key generation out of
// the individual tests.
func RSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	rsaOnce.Do(func() {
		rsaKey, rsaErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, rsaErr, "generating rsa key")

	return rsaKey
}

// EncodedRSAKey returns RSAKey as a base64 encoded private JWK.
func EncodedRSAKey(t *testing.T) string {
	t.Helper()

	return EncodeJWK(t, jose.JSONWebKey{Key: RSAKey(t), KeyID: KeyID, Algorithm: string(jose.RS256), Use: "sig"})
}

// EncodedECKey returns a base64 encoded private P-256 JWK.
func EncodedECKey(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "generating ec key")

	return EncodeJWK(t, jose.JSONWebKey{Key: key, KeyID: "ec-key", Algorithm: string(jose.ES256), Use: "sig"})
}

func EncodeJWK(t *testing.T, jwk jose.JSONWebKey) string {
	t.Helper()

	data, err := jwk.MarshalJSON()
	require.NoError(t, err, "marshaling jwk")

	return base64.StdEncoding.EncodeToString(data)
}

package session

import (
	"errors"
	"time"

	"github.com/openkcm/esignet-login/internal/serviceerr"
)

// DefaultTTL is the lifetime of a pending login.
const DefaultTTL = 15 * time.Minute

// Hash field names of a stored record.
const (
	FieldCSRFToken    = "csrf_token"
	FieldCodeVerifier = "code_verifier"
	FieldRedirectURI  = "redirect_uri"
)

// Record is the server side state of a pending login. It aligns the callback
// with the authorization request and keeps the PKCE verifier away from the
// browser.
type Record struct {
	CSRFToken    string // State parameter sent to the identity provider
	CodeVerifier string // PKCE verifier matching the challenge in the auth URL
	RedirectURI  string // Redirect URI used for the authorization request
}

func (r Record) Fields() map[string]string {
	return map[string]string{
		FieldCSRFToken:    r.CSRFToken,
		FieldCodeVerifier: r.CodeVerifier,
		FieldRedirectURI:  r.RedirectURI,
	}
}

// RecordFromFields returns serviceerr.ErrNotFound for an empty hash, which
// is what stores report for missing or expired keys.
func RecordFromFields(fields map[string]string) (Record, error) {
	if len(fields) == 0 {
		return Record{}, serviceerr.ErrNotFound
	}

	r := Record{
		CSRFToken:    fields[FieldCSRFToken],
		CodeVerifier: fields[FieldCodeVerifier],
		RedirectURI:  fields[FieldRedirectURI],
	}
	if r.CSRFToken == "" || r.CodeVerifier == "" || r.RedirectURI == "" {
		return Record{}, errors.Join(serviceerr.ErrNotFound, errors.New("incomplete session record"))
	}

	return r, nil
}

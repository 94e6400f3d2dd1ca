package login

import (
	"strings"
	"time"

	"github.com/openkcm/esignet-login/internal/serviceerr"
	"github.com/openkcm/esignet-login/internal/session"
)

const DefaultScope = "openid profile email"

// Config is the immutable configuration of a Manager.
type Config struct {
	ClientID            string
	AuthorizeURL        string
	TokenURL            string
	UserInfoURL         string
	PrivateKey          string // base64 encoded RSA JWK
	ClientAssertionType string

	// Optional
	Scope           string
	SessionTTL      time.Duration
	UserInfoJWKSURL string
}

func (c Config) withDefaults() Config {
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = session.DefaultTTL
	}

	return c
}

func (c Config) missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"client_id", c.ClientID},
		{"authorize_url", c.AuthorizeURL},
		{"token_url", c.TokenURL},
		{"user_info_url", c.UserInfoURL},
		{"private_key", c.PrivateKey},
		{"client_assertion_type", c.ClientAssertionType},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}

	return missing
}

func configurationError(missing []string) error {
	return serviceerr.New(serviceerr.ErrConfiguration,
		serviceerr.ErrConfiguration.Description+": "+strings.Join(missing, ", "))
}

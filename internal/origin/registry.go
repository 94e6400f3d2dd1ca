// Package origin maps the origin of a login request to the redirect URI
// registered for it at the identity provider.
package origin

import (
	"cmp"
	"slices"
	"sync"

	"github.com/openkcm/esignet-login/internal/serviceerr"
)

type HostConfig struct {
	Origin      string `json:"origin" yaml:"origin" mapstructure:"origin"`
	RedirectURI string `json:"redirectURI" yaml:"redirectURI" mapstructure:"redirectURI"`
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	hosts map[string]string
}

// New creates a registry from the given host configurations. Entries with an
// empty origin or redirect URI are skipped. It fails if no entries are given
// or if none of them is usable.
func New(hosts ...HostConfig) (*Registry, error) {
	if len(hosts) == 0 {
		return nil, serviceerr.New(serviceerr.ErrInvalidArgument, "host configurations must be provided and cannot be empty")
	}

	r := &Registry{hosts: make(map[string]string, len(hosts))}
	for _, h := range hosts {
		if h.Origin == "" || h.RedirectURI == "" {
			continue
		}
		r.hosts[h.Origin] = h.RedirectURI
	}

	if len(r.hosts) == 0 {
		return nil, serviceerr.New(serviceerr.ErrInvalidArgument, "no valid host configurations provided")
	}

	return r, nil
}

// NewFromMap creates a registry from an origin to redirect URI map.
func NewFromMap(hosts map[string]string) (*Registry, error) {
	configs := make([]HostConfig, 0, len(hosts))
	for o, uri := range hosts {
		configs = append(configs, HostConfig{Origin: o, RedirectURI: uri})
	}

	return New(configs...)
}

// Resolve returns the redirect URI registered for the origin or
// serviceerr.ErrNotFound.
func (r *Registry) Resolve(origin string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uri, ok := r.hosts[origin]
	if !ok {
		return "", serviceerr.ErrNotFound
	}

	return uri, nil
}

func (r *Registry) Add(origin, redirectURI string) error {
	if origin == "" || redirectURI == "" {
		return serviceerr.New(serviceerr.ErrInvalidArgument, "both origin and redirect URI must be non-empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.hosts[origin] = redirectURI

	return nil
}

func (r *Registry) Remove(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.hosts, origin)
}

// Hosts returns a snapshot of the registry ordered by origin.
func (r *Registry) Hosts() []HostConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts := make([]HostConfig, 0, len(r.hosts))
	for o, uri := range r.hosts {
		hosts = append(hosts, HostConfig{Origin: o, RedirectURI: uri})
	}
	slices.SortFunc(hosts, func(a, b HostConfig) int { return cmp.Compare(a.Origin, b.Origin) })

	return hosts
}

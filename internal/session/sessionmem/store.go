// Package sessionmem keeps pending logins in process memory. It suits a
// single replica deployment and local development.
package sessionmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/esignet-login/internal/serviceerr"
	"github.com/openkcm/esignet-login/internal/session"
)

const cleanupInterval = time.Minute

var ErrPutSession = errors.New("setting session into storage")

type Store struct {
	// mu serialises Take against other writers
	mu    sync.Mutex
	cache *cache.Cache
}

var _ session.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		cache: cache.New(session.DefaultTTL, cleanupInterval),
	}
}

func (s *Store) Put(_ context.Context, id string, record session.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Join(ErrPutSession, fmt.Errorf("non-positive ttl %s", ttl))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(id, record, ttl)

	return nil
}

func (s *Store) GetAll(_ context.Context, id string) (session.Record, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return session.Record{}, serviceerr.ErrNotFound
	}

	return v.(session.Record), nil
}

func (s *Store) Take(_ context.Context, id string) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return session.Record{}, serviceerr.ErrNotFound
	}
	s.cache.Delete(id)

	return v.(session.Record), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(id)

	return nil
}

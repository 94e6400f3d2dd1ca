package sessionmock

import (
	"context"
	"sync"
	"time"

	"github.com/openkcm/esignet-login/internal/serviceerr"
	"github.com/openkcm/esignet-login/internal/session"
)

type StoreOption func(*Store)

// Store is an in-memory session.Store for tests. It records the TTL of every
// Put and can be configured to fail any operation.
type Store struct {
	mu      sync.Mutex
	records map[string]session.Record
	ttls    map[string]time.Duration

	putErr, getErr, takeErr, deleteErr error
}

func WithRecord(id string, record session.Record) StoreOption {
	return func(s *Store) { s.records[id] = record }
}
func WithPutError(err error) StoreOption {
	return func(s *Store) { s.putErr = err }
}
func WithGetError(err error) StoreOption {
	return func(s *Store) { s.getErr = err }
}
func WithTakeError(err error) StoreOption {
	return func(s *Store) { s.takeErr = err }
}
func WithDeleteError(err error) StoreOption {
	return func(s *Store) { s.deleteErr = err }
}

var _ session.Store = (*Store)(nil)

func NewInMemStore(opts ...StoreOption) *Store {
	s := &Store{
		records: make(map[string]session.Record),
		ttls:    make(map[string]time.Duration),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Put(_ context.Context, id string, record session.Record, ttl time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = record
	s.ttls[id] = ttl
	return nil
}

func (s *Store) GetAll(_ context.Context, id string) (session.Record, error) {
	if s.getErr != nil {
		return session.Record{}, s.getErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[id]; ok {
		return record, nil
	}
	return session.Record{}, serviceerr.ErrNotFound
}

func (s *Store) Take(_ context.Context, id string) (session.Record, error) {
	if s.takeErr != nil {
		return session.Record{}, s.takeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return session.Record{}, serviceerr.ErrNotFound
	}
	delete(s.records, id)
	delete(s.ttls, id)
	return record, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.ttls, id)
	return nil
}

// TTL returns the TTL the record was stored with.
func (s *Store) TTL(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.ttls[id]
	return ttl, ok
}

// IDs returns the ids of the stored records.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

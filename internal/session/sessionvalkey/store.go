// Package sessionvalkey stores pending logins as Valkey hashes.
package sessionvalkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/esignet-login/internal/session"
)

const objectTypeSession = "session"

var (
	ErrPutSession    = errors.New("setting session into storage")
	ErrGetSession    = errors.New("getting session from store")
	ErrTakeSession   = errors.New("taking session from store")
	ErrDeleteSession = errors.New("deleting session from store")
)

// takeScript reads and deletes a hash in one step.
var takeScript = valkey.NewLuaScript(`
local v = redis.call('HGETALL', KEYS[1])
if #v > 0 then
	redis.call('DEL', KEYS[1])
end
return v
`)

type Store struct {
	valkey valkey.Client
	prefix string
}

var _ session.Store = (*Store)(nil)

func NewStore(client valkey.Client, prefix string) *Store {
	return &Store{
		valkey: client,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectTypeSession, id)
}

func (s *Store) Put(ctx context.Context, id string, record session.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Join(ErrPutSession, fmt.Errorf("non-positive ttl %s", ttl))
	}

	key := s.key(id)
	hset := s.valkey.B().Hset().Key(key).FieldValue().
		FieldValue(session.FieldCSRFToken, record.CSRFToken).
		FieldValue(session.FieldCodeVerifier, record.CodeVerifier).
		FieldValue(session.FieldRedirectURI, record.RedirectURI).
		Build()

	results := s.valkey.DoMulti(ctx,
		s.valkey.B().Multi().Build(),
		hset,
		s.valkey.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build(),
		s.valkey.B().Exec().Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return errors.Join(ErrPutSession, err)
		}
	}

	// Errors of queued commands are elements of the EXEC reply.
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return errors.Join(ErrPutSession, err)
	}
	for _, reply := range replies {
		if err := reply.Error(); err != nil {
			return errors.Join(ErrPutSession, err)
		}
	}

	return nil
}

func (s *Store) GetAll(ctx context.Context, id string) (session.Record, error) {
	fields, err := s.valkey.Do(ctx, s.valkey.B().Hgetall().Key(s.key(id)).Build()).AsStrMap()
	if err != nil && !valkey.IsValkeyNil(err) {
		return session.Record{}, errors.Join(ErrGetSession, err)
	}

	record, err := session.RecordFromFields(fields)
	if err != nil {
		return session.Record{}, errors.Join(ErrGetSession, err)
	}

	return record, nil
}

func (s *Store) Take(ctx context.Context, id string) (session.Record, error) {
	values, err := takeScript.Exec(ctx, s.valkey, []string{s.key(id)}, nil).AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return session.Record{}, errors.Join(ErrTakeSession, err)
	}

	record, err := session.RecordFromFields(pairsToMap(values))
	if err != nil {
		return session.Record{}, errors.Join(ErrTakeSession, err)
	}

	return record, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(id)).Build()).Error(); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}

	return nil
}

// pairsToMap converts a flat HGETALL reply into a field map.
func pairsToMap(values []string) map[string]string {
	fields := make(map[string]string, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i]] = values[i+1]
	}

	return fields
}

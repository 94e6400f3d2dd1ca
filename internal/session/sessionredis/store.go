// Package sessionredis stores pending logins as Redis hashes through go-redis.
package sessionredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openkcm/esignet-login/internal/session"
)

var (
	ErrPutSession    = errors.New("setting session into storage")
	ErrGetSession    = errors.New("getting session from store")
	ErrTakeSession   = errors.New("taking session from store")
	ErrDeleteSession = errors.New("deleting session from store")
)

var takeScript = redis.NewScript(`
local v = redis.call('HGETALL', KEYS[1])
if #v > 0 then
	redis.call('DEL', KEYS[1])
end
return v
`)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ session.Store = (*Store)(nil)

func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{
		rdb:    rdb,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *Store) Put(ctx context.Context, id string, record session.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Join(ErrPutSession, fmt.Errorf("non-positive ttl %s", ttl))
	}

	key := s.key(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, record.Fields())
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Join(ErrPutSession, err)
	}

	return nil
}

func (s *Store) GetAll(ctx context.Context, id string) (session.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return session.Record{}, errors.Join(ErrGetSession, err)
	}

	record, err := session.RecordFromFields(fields)
	if err != nil {
		return session.Record{}, errors.Join(ErrGetSession, err)
	}

	return record, nil
}

func (s *Store) Take(ctx context.Context, id string) (session.Record, error) {
	values, err := takeScript.Run(ctx, s.rdb, []string{s.key(id)}).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return session.Record{}, errors.Join(ErrTakeSession, err)
	}

	fields := make(map[string]string, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i]] = values[i+1]
	}

	record, err := session.RecordFromFields(fields)
	if err != nil {
		return session.Record{}, errors.Join(ErrTakeSession, err)
	}

	return record, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}

	return nil
}

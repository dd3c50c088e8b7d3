package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/practicehub/storage/authstore"
)

const keyPrefix = "practicehub:"

// Store keeps blobs in Redis, letting several clients on a machine (or a kiosk fleet) share one
// signed-in session.
type Store struct {
	rdb redis.UniversalClient
}

var _ authstore.Backend = (*Store)(nil)

func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Open connects to addr and pings the server.
func Open(ctx context.Context, addr, password string, db int) (*Store, func() error, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return New(rdb), rdb.Close, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	return s.rdb.Set(ctx, keyPrefix+key, data, 0).Err()
}

func (s *Store) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}

package kv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis.
type RedisStore struct {
	rdb *redis.Client
	opt RedisOptions
}

// RedisOptions connection settings.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string
}

// NewRedisStore connects and pings the Redis server.
func NewRedisStore(ctx context.Context, opt RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	return &RedisStore{rdb: rdb, opt: opt}, nil
}

func (s *RedisStore) key(k string) string { return s.opt.KeyPrefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "redis get")
	}

	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.Wrap(s.rdb.Set(ctx, s.key(key), value, 0).Err(), "redis set")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(key)).Err(), "redis del")
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, s.key(prefix)+"*", 100).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis scan")
		}
		for _, k := range batch {
			keys = append(keys, k[len(s.opt.KeyPrefix):])
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

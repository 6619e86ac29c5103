package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/newsletter"
)

type RedisStore struct {
	client *redis.Client
}

var _ newsletter.CounterStore = (*RedisStore)(nil) // interface compliance check

// OpenRedis connects to the configured Redis server and pings it.
func OpenRedis(ctx context.Context, conf *core.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return NewRedisStore(client), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr increments key and reads its expiry in one transaction, then arms the expiry when the key has none.
// A key left without expiry by a failed PEXPIRE is re-armed by the next hit instead of counting forever.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "redis INCR")
	}
	if err := incr.Err(); err != nil {
		return 0, errors.Wrap(err, "redis INCR")
	}

	if ttl.Err() != nil || ttl.Val() < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return incr.Val(), errors.Wrap(err, "redis PEXPIRE")
		}
	}
	return incr.Val(), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

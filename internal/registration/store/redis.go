package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"regform/pkg/platform/sentinel"
)

const defaultRedisPrefix = "regform:"

// maxUpdateAttempts bounds WATCH retries before Update reports a conflict.
const maxUpdateAttempts = 10

// Redis keeps values as plain strings and appends with WATCH/MULTI.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

type RedisOption func(*Redis)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}

// Update watches key, applies fn and commits in MULTI. A concurrent write
// aborts the transaction and the whole read-modify-write is retried.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := r.key(key)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if errors.Is(err, redis.Nil) {
			current = nil
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return err
		}
		return fmt.Errorf("redis update %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("redis update %s: %w", key, sentinel.ErrConflict)
}

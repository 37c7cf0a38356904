package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// Redis is a Backend that stores JSON-encoded values under prefix+key.
// Every Put refreshes the key's TTL, so Redis expires idle entries on its own;
// Sweep covers entries whose staleness is decided by the value itself.
type Redis[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	ttlFor func(T) time.Duration
}

type RedisOption[T any] func(*Redis[T])

// WithTTLFunc lets the stored value pick its own TTL on every Put.
// A zero result stores the key without expiry.
func WithTTLFunc[T any](f func(T) time.Duration) RedisOption[T] {
	return func(r *Redis[T]) { r.ttlFor = f }
}

func NewRedis[T any](client *redis.Client, prefix string, ttl time.Duration, opts ...RedisOption[T]) (*Redis[T], error) {
	if client == nil || prefix == "" {
		return nil, ErrInvalidConfig
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	r := &Redis[T]{client: client, prefix: prefix, ttl: ttl}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis[T]) key(k string) string {
	return r.prefix + k
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	ttl := r.ttl
	if r.ttlFor != nil {
		ttl = r.ttlFor(value)
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Sweep re-reads each candidate under WATCH and deletes it in a transaction,
// so an entry rewritten after the staleness check survives.
func (r *Redis[T]) Sweep(ctx context.Context, stale func(key string, value T) bool) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key := full[len(r.prefix):]

		deleted := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, full).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil
			}
			if !stale(key, v) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, full)
				return nil
			})
			if err == nil {
				deleted = true
			}
			return err
		}, full)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis sweep %s: %w", key, err)
		}
		if deleted {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

func (r *Redis[T]) Close() error {
	return r.client.Close()
}

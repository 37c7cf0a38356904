// Package kv provides the keyed backends that hold per-session state.
package kv

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

var ErrInvalidConfig = errors.New("invalid kv configuration")

// Backend stores values of type T by string key.
//
// Get returns ok=false when the key is absent; absence is not an error.
// Sweep deletes every entry for which stale returns true and reports how many
// entries were removed.
type Backend[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Put(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
	Sweep(ctx context.Context, stale func(key string, value T) bool) (int, error)
	Close() error
}

const lockShards = 64

// KeyedMutex serializes read-modify-write sequences per key.
// Keys are hashed onto a fixed number of shards, so unrelated keys may share a lock.
type KeyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *KeyedMutex) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%lockShards]
	m.Lock()
	return m.Unlock
}

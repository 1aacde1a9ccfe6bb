// Package backend defines the storage contract every cache backend
// implements (spec §4.1) and a Suppress wrapper that downgrades transport
// failures to neutral defaults.
package backend

import (
	"context"
	"time"
)

// Backend is the semantic interface a storage adapter must satisfy to sit
// behind the facade. All methods are context-aware and return error last,
// per the language mapping in SPEC_FULL.md.
type Backend interface {
	// Ping checks connectivity. Unlike every other method it is never
	// suppressed by Suppress, since a caller explicitly probing liveness
	// wants to see the failure.
	Ping(ctx context.Context) error

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	GetMatch(ctx context.Context, pattern string, count int) (map[string][]byte, error)
	Scan(ctx context.Context, pattern string, count int) ([]string, error)

	Incr(ctx context.Context, key string, delta int64) (int64, error)

	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys []string) (int, error)
	DeleteMatch(ctx context.Context, pattern string) (int, error)

	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GetExpire(ctx context.Context, key string) (time.Duration, error)

	GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error)
	IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error)

	// SliceIncr maintains a sliding window of counters bucketed by time and
	// returns the bucket values covering [from, to] (spec §4.7, sliding
	// rate limit).
	SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error)

	SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SetRemove(ctx context.Context, key string, members ...string) error
	SetPop(ctx context.Context, key string, count int) ([]string, error)

	SetLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	IsLocked(ctx context.Context, key string, value string) (bool, error)
	Unlock(ctx context.Context, key string, value string) (bool, error)

	GetSize(ctx context.Context) (int64, error)
	GetKeysCount(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error

	// SetOnRemoveCallback registers a hook invoked whenever a key is
	// evicted or explicitly deleted, used by the tag registry to prune its
	// reverse index (spec §4.6).
	SetOnRemoveCallback(fn func(key string))

	Close(ctx context.Context) error
}

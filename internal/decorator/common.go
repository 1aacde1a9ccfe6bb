// Package decorator implements the caching strategies that wrap an
// arbitrary function with a cache-aside policy (spec §4.7): simple
// get-or-compute, stampede mitigations (early, thunder_protection, locked),
// staleness tolerance (soft, failover), counters (hit, circuit breaker,
// rate limiters), membership probes (bloom variants) and chunked iteration.
package decorator

import (
	"context"
	"time"
)

// Func is the shape of any function a decorator can wrap: a context plus
// positional call arguments in, a single result or error out. Named
// parameters (as the original binds by keyword into key templates) are
// replaced by KeyFunc computing the key directly from the same args.
type Func func(ctx context.Context, args ...any) (any, error)

// KeyFunc derives the cache key for one call from its arguments.
type KeyFunc func(args ...any) string

// Store is the subset of facade.Cache a decorator needs. Decorators depend
// on this narrow interface, not the concrete facade type, so they can be
// tested against a bare backend or a fake.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GetExpire(ctx context.Context, key string) (time.Duration, error)
	SetLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, value string) (bool, error)
	IsLocked(ctx context.Context, key, value string) (bool, error)
	GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error)
	IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error)
	SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error)
	SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SetPop(ctx context.Context, key string, count int) ([]string, error)
}

// Codec is the narrow serialize.Serializer surface decorators need to turn
// a function's result into bytes and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// ErrPredicate decides whether an error returned by a wrapped function
// should trigger a decorator's fallback behavior (stale-on-exception,
// circuit breaker failure counting, ...). The default treats any non-nil
// error as failure, matching spec §9's note that "catch specific exception
// classes" becomes a predicate in Go.
type ErrPredicate func(error) bool

// AnyError is the default ErrPredicate.
func AnyError(err error) bool { return err != nil }

// Tagger is the narrow tags.Registry surface a decorator needs to bind a
// freshly stored key to its tags (spec §4.6, "each tag is validated... the
// key is added to a set named `_tag:`+bound_tag"). tags here are tag
// *templates* (e.g. "user:{uid}"), matched against the key's own template
// by the Tagger implementation to derive the bound, concrete tag.
type Tagger interface {
	Bind(ctx context.Context, key string, tags []string) error
}

// bindTags binds key to tags through tagger once a store succeeds, if both
// a tagger and a non-empty tag list were supplied. A nil tagger or an empty
// tag list is a no-op, so untagged decorator calls pay nothing extra.
func bindTags(ctx context.Context, tagger Tagger, key string, tags []string) {
	if tagger == nil || len(tags) == 0 {
		return
	}
	_ = tagger.Bind(ctx, key, tags)
}

// FastCondition builds a cheap guard for "only cache a result once and
// never again", grounded on the original's fast_condition helper used by
// the failover decorator to avoid re-evaluating an expensive predicate on
// every call.
func FastCondition(once func() bool) func() bool {
	var decided bool
	var result bool
	return func() bool {
		if decided {
			return result
		}
		result = once()
		decided = true
		return result
	}
}

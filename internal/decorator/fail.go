package decorator

import (
	"context"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Failover always calls fn first; only on failure does it fall back to the
// last good cached value, rather than trading staleness for speed on every
// call the way Soft does (spec §4.7, "fail"). A successful call always
// refreshes the cache so the fallback stays as recent as possible.
func Failover(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, shouldFallback ErrPredicate, fn Func) Func {
	if shouldFallback == nil {
		shouldFallback = AnyError
	}
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		v, err := fn(ctx, args...)
		if err == nil {
			if raw, encErr := codec.Encode(v); encErr == nil {
				_ = store.Set(ctx, key, raw, ttl.Resolve(args...))
			}
			return v, nil
		}
		if !shouldFallback(err) {
			return nil, err
		}
		if raw, ok, gerr := store.Get(ctx, key); gerr == nil && ok {
			if cached, derr := codec.Decode(raw); derr == nil {
				return cached, nil
			}
		}
		return nil, err
	}
}

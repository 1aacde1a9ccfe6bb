package decorator

import (
	"context"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Hit wraps fn so the result is only cached once a key has been requested
// at least minHits times within one TTL window; until then every call
// recomputes, spending cache space only on keys that are actually hot
// (spec §4.7, "hit").
func Hit(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, minHits int64, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			if v, err := codec.Decode(raw); err == nil {
				return v, nil
			}
		}

		countKey := key + ":hits"
		n, _ := store.Incr(ctx, countKey, 1)
		d := ttl.Resolve(args...)
		if n == 1 {
			_ = store.Expire(ctx, countKey, d)
		}

		v, err := fn(ctx, args...)
		if err != nil {
			return nil, err
		}
		if n >= minHits {
			if raw, encErr := codec.Encode(v); encErr == nil {
				_ = store.Set(ctx, key, raw, d)
			}
		}
		return v, nil
	}
}

package decorator

import (
	"context"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Simple wraps fn with the plain cache-aside policy: look the key up,
// return it on a hit, otherwise call fn, store the result and return it
// (spec §4.7, "simple"). A successful store additionally binds the key to
// tags through tagger (spec §4.6); pass a nil tagger or an empty tags list
// to skip tagging.
func Simple(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, tagger Tagger, tags []string, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			if v, err := codec.Decode(raw); err == nil {
				return v, nil
			}
		}
		v, err := fn(ctx, args...)
		if err != nil {
			return nil, err
		}
		if raw, err := codec.Encode(v); err == nil {
			_ = store.Set(ctx, key, raw, ttl.Resolve(args...))
			bindTags(ctx, tagger, key, tags)
		}
		return v, nil
	}
}

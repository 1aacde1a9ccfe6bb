package decorator

import (
	"context"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// RateLimit implements a fixed-window limiter: each window increments a
// counter (set to expire at the window's end on its first increment), and
// once the limit is exceeded the key is "banned" for banDuration, rejecting
// every call regardless of window rollover until the ban expires (spec
// §4.7, "rate_limit").
func RateLimit(store Store, keyFn KeyFunc, limit int64, window, banDuration time.Duration, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		banKey := key + ":ban"

		if ok, _ := store.IsLocked(ctx, banKey, ""); ok {
			return nil, cachepkg.ErrRateLimited
		}

		n, err := store.Incr(ctx, key, 1)
		if err != nil {
			return nil, err
		}
		if n == 1 {
			_ = store.Expire(ctx, key, window)
		}
		if n > limit {
			if banDuration > 0 {
				_, _ = store.SetLock(ctx, banKey, "banned", banDuration)
			}
			return nil, cachepkg.ErrRateLimited
		}

		return fn(ctx, args...)
	}
}

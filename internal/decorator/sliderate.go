package decorator

import (
	"context"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// SlidingRateLimit implements a rolling-window limiter over windowSeconds
// one-second buckets via SliceIncr, smoothing the boundary-burst problem a
// fixed window has (spec §4.7, "slice_rate_limit").
func SlidingRateLimit(store Store, keyFn KeyFunc, limit int64, windowSeconds int, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		buckets, err := store.SliceIncr(ctx, key, -(windowSeconds - 1), 0, 1<<40, time.Duration(windowSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		var total int64
		for _, v := range buckets {
			total += v
		}
		if total > limit {
			return nil, cachepkg.ErrRateLimited
		}
		return fn(ctx, args...)
	}
}

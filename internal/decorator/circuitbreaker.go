package decorator

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// CircuitBreaker counts successes/failures in a sliding window (via
// SliceIncr) and refuses calls with cachepkg.ErrCircuitBreakerOpen once the
// failure rate crosses threshold, re-testing with a single trial call
// after halfOpenAfter elapses (spec §4.7, "circuit_breaker").
func CircuitBreaker(store Store, keyFn KeyFunc, windowSeconds int, minThroughput int64, failThreshold float64, halfOpenAfter time.Duration, shouldCount ErrPredicate, fn Func) Func {
	if shouldCount == nil {
		shouldCount = AnyError
	}
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		stateKey := key + ":breaker"

		halfOpen := false
		if raw, ok, err := store.Get(ctx, stateKey); err == nil && ok {
			var openedAt int64
			fmt.Sscanf(string(raw), "%d", &openedAt)
			openedSince := time.Unix(openedAt, 0)
			if time.Since(openedSince) < halfOpenAfter {
				return nil, cachepkg.ErrCircuitBreakerOpen
			}
			halfOpen = true
		}

		totals, _ := store.SliceIncr(ctx, key+":total", -(windowSeconds - 1), 0, 1<<40, time.Duration(windowSeconds)*time.Second)
		var total int64
		for _, v := range totals {
			total += v
		}

		v, err := fn(ctx, args...)

		if err != nil && shouldCount(err) {
			fails, _ := store.SliceIncr(ctx, key+":fail", -(windowSeconds - 1), 0, 1<<40, time.Duration(windowSeconds)*time.Second)
			var failTotal int64
			for _, f := range fails {
				failTotal += f
			}
			if total >= minThroughput && float64(failTotal)/float64(total) >= failThreshold {
				_ = store.Set(ctx, stateKey, []byte(fmt.Sprintf("%d", time.Now().Unix())), 0)
			}
			return nil, err
		}

		if halfOpen {
			_, _ = store.Delete(ctx, stateKey)
		}
		return v, nil
	}
}

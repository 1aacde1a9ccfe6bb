package decorator

import (
	"context"
	"sync"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// singleflightCall tracks one in-flight computation so concurrent callers
// in the same process waiting on the same key share its result instead of
// each calling fn.
type singleflightCall struct {
	wg    sync.WaitGroup
	value any
	err   error
}

// ThunderProtection coalesces concurrent same-key calls within this
// process: the first caller for a key actually invokes fn (after a cache
// miss); concurrent callers for the same key wait on that call instead of
// issuing their own (spec §4.7, "thunder_protection"). This is a narrower,
// in-process version of Locked, which coalesces across the whole
// deployment via a distributed lock.
func ThunderProtection(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, fn Func) Func {
	var mu sync.Mutex
	inflight := make(map[string]*singleflightCall)

	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			if v, derr := codec.Decode(raw); derr == nil {
				return v, nil
			}
		}

		mu.Lock()
		if call, ok := inflight[key]; ok {
			mu.Unlock()
			call.wg.Wait()
			return call.value, call.err
		}
		call := &singleflightCall{}
		call.wg.Add(1)
		inflight[key] = call
		mu.Unlock()

		v, err := fn(ctx, args...)
		call.value, call.err = v, err
		if err == nil {
			if raw, encErr := codec.Encode(v); encErr == nil {
				_ = store.Set(ctx, key, raw, ttl.Resolve(args...))
			}
		}

		mu.Lock()
		delete(inflight, key)
		mu.Unlock()
		call.wg.Done()

		return v, err
	}
}

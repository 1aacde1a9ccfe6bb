package decorator

import (
	"context"
	"errors"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/google/uuid"
)

// Locked ensures only one caller across the whole deployment computes a
// given key's value at a time: the first caller to win the lock computes
// and stores it; everyone else polls the cache until the value appears or
// the lock is released, then retries (spec §4.7, "locked").
func Locked(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, pollInterval time.Duration, fn Func) Func {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			if v, derr := codec.Decode(raw); derr == nil {
				return v, nil
			}
		}

		lockKey := key + ":lock"
		token := uuid.NewString()
		d := ttl.Resolve(args...)

		acquired, err := store.SetLock(ctx, lockKey, token, 30*time.Second)
		for err == nil && !acquired {
			v, perr := pollForResult(ctx, store, codec, key, lockKey, pollInterval)
			var le *cachepkg.LockedError
			if !errors.As(perr, &le) {
				return v, perr
			}
			acquired, err = store.SetLock(ctx, lockKey, token, 30*time.Second)
		}
		if err != nil {
			return nil, err
		}
		defer func() { _, _ = store.Unlock(context.Background(), lockKey, token) }()

		v, err := fn(ctx, args...)
		if err != nil {
			return nil, err
		}
		if raw, encErr := codec.Encode(v); encErr == nil {
			_ = store.Set(ctx, key, raw, d)
		}
		return v, nil
	}
}

func pollForResult(ctx context.Context, store Store, codec Codec, key, lockKey string, interval time.Duration) (any, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if raw, ok, err := store.Get(ctx, key); err == nil && ok {
				if v, derr := codec.Decode(raw); derr == nil {
					return v, nil
				}
			}
			locked, err := store.IsLocked(ctx, lockKey, "")
			if err == nil && !locked {
				return nil, &cachepkg.LockedError{Key: key, Reason: "holder released lock without producing a value"}
			}
		}
	}
}

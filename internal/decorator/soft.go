package decorator

import (
	"context"
	"encoding/gob"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

type softEnvelope struct {
	Value     any
	SoftUntil time.Time
}

func init() {
	gob.Register(softEnvelope{})
}

// Soft wraps fn so a value is considered fresh until softTTL but stays
// readable as a fallback until hardTTL: once softTTL elapses, the next
// caller always recomputes synchronously, but if fn then fails, the stale
// value is returned instead of the error (spec §4.7, "soft").
func Soft(store Store, codec Codec, keyFn KeyFunc, softTTL, hardTTL cachepkg.TTL, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		raw, ok, err := store.Get(ctx, key)
		var stale *softEnvelope
		if err == nil && ok {
			if decoded, derr := codec.Decode(raw); derr == nil {
				if env, cast := decoded.(softEnvelope); cast {
					if time.Now().Before(env.SoftUntil) {
						return env.Value, nil
					}
					stale = &env
				}
			}
		}

		v, callErr := fn(ctx, args...)
		if callErr != nil {
			if stale != nil {
				return stale.Value, nil
			}
			return nil, callErr
		}

		env := softEnvelope{Value: v, SoftUntil: time.Now().Add(softTTL.Resolve(args...))}
		if enc, encErr := codec.Encode(env); encErr == nil {
			_ = store.Set(ctx, key, enc, hardTTL.Resolve(args...))
		}
		return v, nil
	}
}

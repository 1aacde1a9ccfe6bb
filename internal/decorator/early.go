package decorator

import (
	"context"
	"encoding/gob"
	"sync"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// earlyEnvelope is what Early actually stores: the computed value plus
// enough bookkeeping to decide when a background recompute should start.
type earlyEnvelope struct {
	Value   any
	Runtime time.Duration
	Born    time.Time
}

func init() {
	gob.Register(earlyEnvelope{})
}

// Early mitigates cache stampedes by recomputing a value in the background
// once it passes a soft deadline well before its hard TTL, while every
// caller in the meantime keeps getting the still-valid stale value
// immediately (spec §4.7, "early"). The soft deadline sits at
// ttl - 3*runtime, clamped to zero (spec §9 open question).
// A successful store additionally binds the key to tags through tagger
// (spec §4.6); pass a nil tagger or an empty tags list to skip tagging.
func Early(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, tagger Tagger, tags []string, fn Func) Func {
	var inflight sync.Map // key -> struct{}{}

	compute := func(ctx context.Context, key string, args []any) (any, error) {
		start := time.Now()
		v, err := fn(ctx, args...)
		if err != nil {
			return nil, err
		}
		env := earlyEnvelope{Value: v, Runtime: time.Since(start), Born: time.Now()}
		if raw, encErr := codec.Encode(env); encErr == nil {
			_ = store.Set(ctx, key, raw, ttl.Resolve(args...))
			bindTags(ctx, tagger, key, tags)
		}
		return v, nil
	}

	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		raw, ok, err := store.Get(ctx, key)
		if err != nil || !ok {
			return compute(ctx, key, args)
		}
		decoded, err := codec.Decode(raw)
		if err != nil {
			return compute(ctx, key, args)
		}
		env, ok := decoded.(earlyEnvelope)
		if !ok {
			return compute(ctx, key, args)
		}

		d := ttl.Resolve(args...)
		delta := d - 3*env.Runtime
		if delta < 0 {
			delta = 0
		}
		if time.Now().After(env.Born.Add(delta)) {
			if _, loaded := inflight.LoadOrStore(key, struct{}{}); !loaded {
				go func() {
					defer inflight.Delete(key)
					bgCtx := context.Background()
					_, _ = compute(bgCtx, key, args)
				}()
			}
		}
		return env.Value, nil
	}
}

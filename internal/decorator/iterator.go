package decorator

import (
	"context"
	"encoding/gob"
	"fmt"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Chunks are []any values; gob needs that type registered to encode it
// through the serializer's interface-typed fallback.
func init() {
	gob.Register([]any(nil))
}

// ChunkProducer yields one page of a sequence given a zero-based page
// index; it returns an empty, nil-error page to signal the end.
type ChunkProducer func(ctx context.Context, page int, args ...any) ([]any, error)

// Iterator caches a lazily-produced sequence chunk by chunk under
// "<key>:chunk:<n>", and only writes a completion marker once every chunk
// has been produced without error — an absent marker always forces a full
// recomputation on the next call, never a partial replay (spec §4.7,
// "iterator", and spec §9's open question on partial writes).
func Iterator(store Store, codec Codec, keyFn KeyFunc, ttl cachepkg.TTL, produce ChunkProducer) func(ctx context.Context, args ...any) ([][]any, error) {
	return func(ctx context.Context, args ...any) ([][]any, error) {
		key := keyFn(args...)
		markerKey := key + ":done"
		d := ttl.Resolve(args...)

		if _, ok, err := store.Get(ctx, markerKey); err == nil && ok {
			return readCachedChunks(ctx, store, codec, key)
		}

		var chunks [][]any
		for page := 0; ; page++ {
			items, err := produce(ctx, page, args...)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				break
			}
			chunks = append(chunks, items)
			raw, encErr := codec.Encode(items)
			if encErr != nil {
				return nil, encErr
			}
			if err := store.Set(ctx, chunkKey(key, page), raw, d); err != nil {
				return nil, err
			}
		}

		if err := store.Set(ctx, markerKey, []byte(fmt.Sprintf("%d", len(chunks))), d); err != nil {
			return nil, err
		}
		return chunks, nil
	}
}

func chunkKey(key string, page int) string {
	return fmt.Sprintf("%s:chunk:%d", key, page)
}

func readCachedChunks(ctx context.Context, store Store, codec Codec, key string) ([][]any, error) {
	var chunks [][]any
	for page := 0; ; page++ {
		raw, ok, err := store.Get(ctx, chunkKey(key, page))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v, err := codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		items, _ := v.([]any)
		chunks = append(chunks, items)
	}
	return chunks, nil
}

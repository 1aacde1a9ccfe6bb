package decorator

import (
	"context"
	"testing"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/fluxkv/fluxkv/internal/serialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIteratorCachesChunksAndReplaysWithoutRecomputing(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	codec := serialize.New(nil)
	keyFn := func(args ...any) string { return "k" }

	pages := [][]any{{"a", "b"}, {"c"}, nil}
	calls := 0
	produce := func(ctx context.Context, page int, args ...any) ([]any, error) {
		calls++
		if page < len(pages) {
			return pages[page], nil
		}
		return nil, nil
	}

	wrapped := Iterator(store, codec, keyFn, cachepkg.Fixed(time.Minute), produce)

	chunks, err := wrapped(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.ElementsMatch(t, []any{"a", "b"}, chunks[0])
	assert.ElementsMatch(t, []any{"c"}, chunks[1])

	producedBefore := calls
	chunks2, err := wrapped(ctx)
	require.NoError(t, err)
	assert.Equal(t, chunks, chunks2)
	assert.Equal(t, producedBefore, calls, "a replay with the completion marker present should not call produce again")
}

func TestIteratorDoesNotSetMarkerOnFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	codec := serialize.New(nil)
	keyFn := func(args ...any) string { return "k" }

	produce := func(ctx context.Context, page int, args ...any) ([]any, error) {
		if page == 0 {
			return []any{"a"}, nil
		}
		return nil, assert.AnError
	}

	wrapped := Iterator(store, codec, keyFn, cachepkg.Fixed(time.Minute), produce)

	_, err := wrapped(ctx)
	require.Error(t, err)

	_, ok, err := store.Get(ctx, "k:done")
	require.NoError(t, err)
	assert.False(t, ok, "a failed production run must never leave a completion marker behind")
}

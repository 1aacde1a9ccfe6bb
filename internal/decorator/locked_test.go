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

func TestLockedComputesOnceAndCaches(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	codec := serialize.New(nil)

	calls := 0
	fn := func(ctx context.Context, args ...any) (any, error) {
		calls++
		return "v", nil
	}
	keyFn := func(args ...any) string { return "k" }

	wrapped := Locked(store, codec, keyFn, cachepkg.Fixed(time.Minute), 5*time.Millisecond, fn)

	v1, err := wrapped(ctx)
	require.NoError(t, err)
	v2, err := wrapped(ctx)
	require.NoError(t, err)

	assert.Equal(t, "v", v1)
	assert.Equal(t, "v", v2)
	assert.Equal(t, 1, calls)
}

func TestLockedSecondCallerPollsUntilValuePublished(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	codec := serialize.New(nil)
	keyFn := func(args ...any) string { return "k" }

	// simulate a holder already owning the lock
	ok, err := store.SetLock(ctx, "k:lock", "holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	fn := func(ctx context.Context, args ...any) (any, error) {
		t.Fatal("a caller that lost the lock race should never invoke fn itself")
		return nil, nil
	}
	wrapped := Locked(store, codec, keyFn, cachepkg.Fixed(time.Minute), 5*time.Millisecond, fn)

	go func() {
		time.Sleep(20 * time.Millisecond)
		raw, encErr := codec.Encode("published-by-holder")
		require.NoError(t, encErr)
		require.NoError(t, store.Set(ctx, "k", raw, time.Minute))
	}()

	v, err := wrapped(ctx)
	require.NoError(t, err)
	assert.Equal(t, "published-by-holder", v)
}

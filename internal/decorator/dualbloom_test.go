package decorator

import (
	"context"
	"testing"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDualBloomTrustsASingleFilterHit(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	d := NewDualBloom(store, 100, 0.01, "bloom:true", "bloom:false")

	require.NoError(t, d.MarkTrue(ctx, "present"))
	value, ambiguous, err := d.Query(ctx, "present")
	require.NoError(t, err)
	require.False(t, ambiguous)
	assert.True(t, value)

	require.NoError(t, d.MarkFalse(ctx, "absent"))
	value, ambiguous, err = d.Query(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ambiguous)
	assert.False(t, value)
}

func TestDualBloomNeverMarkedIsAmbiguous(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	d := NewDualBloom(store, 100, 0.01, "bloom:true", "bloom:false")

	_, ambiguous, err := d.Query(ctx, "never-seen")
	require.NoError(t, err)
	assert.True(t, ambiguous, "a key marked in neither filter must be reported ambiguous, not assumed negative")
}

func TestDualBloomWrapFallsThroughOnAmbiguityAndMarksResult(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	d := NewDualBloom(store, 100, 0.01, "bloom:true", "bloom:false")

	calls := 0
	lookup := func(ctx context.Context, args ...any) (bool, error) {
		calls++
		return true, nil
	}
	keyFn := func(args ...any) string { return args[0].(string) }

	wrapped := d.Wrap(keyFn, lookup)

	v, err := wrapped(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	assert.Equal(t, 1, calls)

	v, err = wrapped(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	assert.Equal(t, 1, calls, "a subsequent query should be answered from the now-unambiguous filter without calling lookup again")
}

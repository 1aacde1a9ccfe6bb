package decorator

import (
	"context"
	"errors"
	"testing"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomParamsReasonable(t *testing.T) {
	m, k := BloomParams(1000, 0.01)
	assert.Greater(t, m, int64(1000))
	assert.GreaterOrEqual(t, k, 1)
}

func TestBloomQueryNegativeUntilSet(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	keyFn := func(args ...any) string { return "k:" + args[0].(string) }

	b := NewBloom(store, keyFn, "bloombits", 100, 0.01, nil)

	present, err := b.Query(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, present, "a filter that was never written must read as negative, not a false positive")

	require.NoError(t, b.Set(ctx, "missing"))
	present, err = b.Query(ctx, "missing")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestBloomCheckFalsePositiveRejectsOnFailedVerify(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	keyFn := func(args ...any) string { return "k:" + args[0].(string) }

	b := NewBloom(store, keyFn, "bloombits", 100, 0.01, nil)
	b.CheckFalsePositive = true
	b.Verify = func(ctx context.Context, args ...any) (any, error) {
		return nil, errors.New("not actually present")
	}

	require.NoError(t, b.Set(ctx, "present"))
	present, err := b.Query(ctx, "present")
	require.NoError(t, err)
	assert.False(t, present, "a verify failure must override an all-ones filter read")
}

func TestCountingBloomAddRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	cb := NewCountingBloom(store, 100, 0.01, 4, "cbits")

	require.NoError(t, cb.Add(ctx, "k"))
	present, err := cb.MightContain(ctx, "k")
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, cb.Remove(ctx, "k"))
}

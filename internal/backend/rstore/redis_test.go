package rstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestRedisSetGet(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisIncr(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	n, err := b.Incr(ctx, "counter", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisLockCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	ok, err := b.SetLock(ctx, "lk", "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Unlock(ctx, "lk", "owner-2")
	require.NoError(t, err)
	assert.False(t, ok, "unlock with the wrong owner token should not delete the key")

	ok, err = b.Unlock(ctx, "lk", "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSetOps(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	require.NoError(t, b.SetAdd(ctx, "tags", 0, "a", "b"))
	members, err := b.SetPop(ctx, "tags", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(0)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	b := New(0)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapacityEviction(t *testing.T) {
	ctx := context.Background()
	b := New(2)

	require.NoError(t, b.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), 0))
	// touch "a" so "b" becomes least-recently-used
	_, _, _ = b.Get(ctx, "a")
	require.NoError(t, b.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ := b.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted as LRU")

	_, ok, _ = b.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = b.Get(ctx, "c")
	assert.True(t, ok)
}

func TestGetMatchAndScan(t *testing.T) {
	ctx := context.Background()
	b := New(0)
	require.NoError(t, b.Set(ctx, "user:1", []byte("a"), 0))
	require.NoError(t, b.Set(ctx, "user:2", []byte("b"), 0))
	require.NoError(t, b.Set(ctx, "other:1", []byte("c"), 0))

	keys, err := b.Scan(ctx, "user:*", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

	matched, err := b.GetMatch(ctx, "user:*", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"user:1": []byte("a"), "user:2": []byte("b")}, matched)
}

func TestIncr(t *testing.T) {
	ctx := context.Background()
	b := New(0)
	n, err := b.Incr(ctx, "counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.Incr(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestSetOps(t *testing.T) {
	ctx := context.Background()
	b := New(0)
	require.NoError(t, b.SetAdd(ctx, "tags", 0, "a", "b", "c"))
	require.NoError(t, b.SetRemove(ctx, "tags", "b"))

	members, err := b.SetPop(ctx, "tags", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, members)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	b := New(0)

	ok, err := b.SetLock(ctx, "lk", "owner-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.SetLock(ctx, "lk", "owner-2", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second owner should not acquire the lock")

	_, err = b.Unlock(ctx, "lk", "owner-2")
	assert.Error(t, err, "unlock with wrong owner should fail")

	ok, err = b.Unlock(ctx, "lk", "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBits(t *testing.T) {
	ctx := context.Background()
	b := New(0)

	bits, err := b.GetBits(ctx, "bloom", 1, 0, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, bits, "never-written key should report nil, not all-zero")

	_, err = b.IncrBits(ctx, "bloom", []int{0, 5, 9}, 1, 1)
	require.NoError(t, err)

	bits, err = b.GetBits(ctx, "bloom", 1, 0, 1, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 0, 1, 1}, bits)
}

func TestOnRemoveCallback(t *testing.T) {
	ctx := context.Background()
	b := New(0)
	var removed []string
	b.SetOnRemoveCallback(func(key string) { removed = append(removed, key) })

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	_, err := b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, removed)
}

func TestJanitorSweepsExpired(t *testing.T) {
	ctx := context.Background()
	b := New(0)
	require.NoError(t, b.Set(ctx, "k", []byte("v"), 5*time.Millisecond))

	stop := StartJanitor(b, 10*time.Millisecond)
	defer stop()

	time.Sleep(50 * time.Millisecond)
	n, err := b.GetKeysCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

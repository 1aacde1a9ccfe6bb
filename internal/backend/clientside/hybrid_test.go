package clientside

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fluxkv/fluxkv/internal/backend/rstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHybrid(t *testing.T) *Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	remote := rstore.New(client)
	return New(remote, client, "fluxkv:", 0, nil)
}

func TestHybridSetPopulatesLocalCache(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)

	require.NoError(t, h.Set(ctx, "k", []byte("v"), 0))

	v, ok, err := h.local.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "a local-backend write should populate the local cache immediately")
	assert.Equal(t, []byte("v"), v)
}

func TestInvalidationEvictsLocalCopy(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)

	require.NoError(t, h.local.Set(ctx, "k", []byte("stale"), 0))

	h.handleInvalidation("k")

	_, ok, err := h.local.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "an invalidation push for a key we did not just write should evict it locally")
}

func TestSelfOriginSuppression(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)

	require.NoError(t, h.Set(ctx, "k", []byte("v"), 0))
	h.handleInvalidation("k") // the echo of our own write

	_, ok, err := h.local.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "the echo of our own recent write should not evict the local copy")
}

func TestGetIgnoresLocalCacheWhenNotReady(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)

	require.NoError(t, h.local.Set(ctx, "k", []byte("stale"), 0))

	_, ok, err := h.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "without a confirmed invalidation subscription the local cache must not be trusted")
}

func TestGetServesFromLocalOnceReady(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)
	h.ready.Store(true)

	require.NoError(t, h.local.Set(ctx, "k", []byte("v"), 0))

	v, ok, err := h.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestGetRecordsKnownAbsentOnRemoteMissWhileReady(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)
	h.ready.Store(true)

	_, ok, err := h.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, h.knownAbsent("missing"), "a remote miss while ready should be remembered as known-absent")

	require.NoError(t, h.Set(ctx, "missing", []byte("now present"), 0))
	assert.False(t, h.knownAbsent("missing"), "a subsequent write must clear the known-absent marker")
}

func TestOnDisconnectClearsReadyAndLocalState(t *testing.T) {
	ctx := context.Background()
	h := newTestHybrid(t)
	h.ready.Store(true)

	require.NoError(t, h.local.Set(ctx, "k", []byte("v"), 0))
	h.markAbsent("missing")

	h.onDisconnect()

	assert.False(t, h.ready.Load())
	assert.False(t, h.knownAbsent("missing"))
	_, ok, err := h.local.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "disconnect must drop the local cache, not just the ready flag")
}

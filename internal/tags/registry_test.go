package tags

import (
	"context"
	"testing"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindRejectsUnregisteredTag(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	r := New(b)

	err := r.Bind(ctx, "k", []string{"unregistered"})
	assert.ErrorIs(t, err, cachepkg.ErrTagNotRegistered)
}

func TestDeleteTagsEvictsBoundKeys(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	r := New(b)
	r.Register("users")

	require.NoError(t, b.Set(ctx, "user:1", []byte("a"), 0))
	require.NoError(t, b.Set(ctx, "user:2", []byte("b"), 0))
	require.NoError(t, r.Bind(ctx, "user:1", []string{"users"}))
	require.NoError(t, r.Bind(ctx, "user:2", []string{"users"}))

	require.NoError(t, r.DeleteTags(ctx, "users"))

	_, ok, err := b.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = b.Get(ctx, "user:2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindRendersTagTemplateFromKeyBindings(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	r := New(b)
	r.Register("user:{uid}", "get_items:{uid}")

	require.NoError(t, b.Set(ctx, "get_items:1", []byte("a"), 0))
	require.NoError(t, b.Set(ctx, "get_items:2", []byte("b"), 0))
	require.NoError(t, r.Bind(ctx, "get_items:1", []string{"user:{uid}"}))
	require.NoError(t, r.Bind(ctx, "get_items:2", []string{"user:{uid}"}))

	assert.ElementsMatch(t, []string{"get_items:1"}, r.BoundKeys("user:1"))
	assert.ElementsMatch(t, []string{"user:1"}, r.GetKeyTags("get_items:1"))

	require.NoError(t, r.DeleteTags(ctx, "user:1"))

	_, ok, err := b.Get(ctx, "get_items:1")
	require.NoError(t, err)
	assert.False(t, ok, "delete_tags(user:1) should evict only get_items:1")

	_, ok, err = b.Get(ctx, "get_items:2")
	require.NoError(t, err)
	assert.True(t, ok, "get_items:2 should still be cached")
}

func TestBindRejectsKeyNotMatchingTagTemplate(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	r := New(b)
	r.Register("user:{uid}", "get_items:{uid}")

	err := r.Bind(ctx, "unrelated:key", []string{"user:{uid}"})
	assert.ErrorIs(t, err, cachepkg.ErrTagNotRegistered)
}

func TestRemovalPrunesTagIndex(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	r := New(b)
	r.Register("users")

	require.NoError(t, b.Set(ctx, "user:1", []byte("a"), 0))
	require.NoError(t, r.Bind(ctx, "user:1", []string{"users"}))

	_, err := b.Delete(ctx, "user:1")
	require.NoError(t, err)

	assert.Empty(t, r.BoundKeys("users"))
}

package decorator

import (
	"context"
	"testing"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitRejectsOverLimitAndBans(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	keyFn := func(args ...any) string { return "k" }

	calls := 0
	fn := func(ctx context.Context, args ...any) (any, error) {
		calls++
		return "v", nil
	}

	wrapped := RateLimit(store, keyFn, 2, time.Minute, time.Minute, fn)

	for i := 0; i < 2; i++ {
		_, err := wrapped(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)

	_, err := wrapped(ctx)
	assert.ErrorIs(t, err, cachepkg.ErrRateLimited)
	assert.Equal(t, 2, calls, "the third call should have been rejected before calling fn")

	// the ban should keep rejecting further calls even if a new window starts
	_, err = wrapped(ctx)
	assert.ErrorIs(t, err, cachepkg.ErrRateLimited)
}

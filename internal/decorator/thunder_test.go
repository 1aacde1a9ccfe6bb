package decorator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/fluxkv/fluxkv/internal/serialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThunderProtectionCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	store := memory.New(0)
	codec := serialize.New(nil)

	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context, args ...any) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}
	keyFn := func(args ...any) string { return "k" }

	wrapped := ThunderProtection(store, codec, keyFn, cachepkg.Fixed(time.Minute), fn)

	const n = 5
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := wrapped(ctx)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "only the first caller for a key should invoke fn")
	for _, v := range results {
		assert.Equal(t, "v", v)
	}
}

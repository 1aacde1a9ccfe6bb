// Package clientside implements the client-side hybrid backend (spec
// §4.3): a remote backend fronted by a local in-memory cache that is kept
// coherent via Redis's broadcast client-side-caching invalidation channel,
// so repeat reads on a hot key never leave the process.
package clientside

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend"
	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// invalidateChannel is the pub/sub channel name Redis uses for
// CLIENT TRACKING ... BCAST invalidation pushes (spec §6).
const invalidateChannel = "__redis__:invalidate"

// selfOriginWindow bounds how long a key stays marked "recently written by
// us" — long enough to absorb the round-trip echo of our own write through
// the broadcast channel, short enough that a genuinely external write is
// never suppressed for long.
const selfOriginWindow = 2 * time.Second

// Backend combines a remote backend.Backend with a local memory.Backend,
// subscribing to Redis's broadcast invalidation channel so writes from
// other processes evict the local copy. Writes this process makes are
// marked recently-updated so the echo of our own invalidation doesn't
// needlessly evict what we just wrote.
type Backend struct {
	backend.Backend // remote, embedded so unmodified methods pass through

	local  *memory.Backend
	client *redis.Client
	log    *logrus.Logger
	prefix string

	// ready reports whether the invalidation subscription is live. Get
	// only trusts the local cache while ready; once the subscription
	// drops there is no way to know what other processes have changed,
	// so reads fall back to the remote backend until Start re-establishes
	// it (spec §4.3, "Recovery").
	ready atomic.Bool

	mu      sync.Mutex
	recent  map[string]time.Time
	absent  map[string]struct{} // keys known, from a prior remote miss, not to exist
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New wires a remote backend behind a local cache of the given capacity.
// client is used only for the invalidation subscription and CLIENT
// TRACKING setup; the remote backend itself may be any implementation
// (normally rstore.Backend wrapping the same client).
func New(remote backend.Backend, client *redis.Client, prefix string, localCapacity int, log *logrus.Logger) *Backend {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Backend{
		Backend: remote,
		local:   memory.New(localCapacity),
		client:  client,
		log:     log,
		prefix:  prefix,
		recent:  make(map[string]time.Time),
		absent:  make(map[string]struct{}),
		stopped: make(chan struct{}),
	}
	h.local.SetOnRemoveCallback(func(key string) {})
	return h
}

// Start enables CLIENT TRACKING in broadcast mode for the configured prefix
// and begins listening for invalidation pushes. Call once after New. The
// ready flag only flips once the subscription is confirmed, so Get never
// trusts the local cache before invalidations can actually reach it.
func (h *Backend) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	if err := h.client.Do(runCtx, "CLIENT", "TRACKING", "on", "BCAST", "PREFIX", h.prefix).Err(); err != nil {
		cancel()
		return err
	}

	pubsub := h.client.Subscribe(runCtx, invalidateChannel)
	if _, err := pubsub.Receive(runCtx); err != nil {
		pubsub.Close()
		cancel()
		return err
	}

	h.ready.Store(true)
	go h.listen(runCtx, pubsub)
	return nil
}

// Stop ends the invalidation subscription. Safe to call once.
func (h *Backend) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Close stops the invalidation listener and closes the remote backend. It
// does not wait for the listener goroutine to exit.
func (h *Backend) Close(ctx context.Context) error {
	h.Stop()
	return h.Backend.Close(ctx)
}

func (h *Backend) listen(ctx context.Context, pubsub *redis.PubSub) {
	defer close(h.stopped)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.onDisconnect()
			return
		case msg, ok := <-ch:
			if !ok {
				h.onDisconnect()
				return
			}
			h.handleInvalidation(msg.Payload)
		}
	}
}

// onDisconnect runs the Recovery behavior once the invalidation
// subscription ends: the local cache can no longer be kept coherent with
// writes from other processes, so it is dropped along with the ready flag,
// forcing Get back to the remote backend until Start succeeds again.
func (h *Backend) onDisconnect() {
	h.ready.Store(false)
	h.mu.Lock()
	h.recent = make(map[string]time.Time)
	h.absent = make(map[string]struct{})
	h.mu.Unlock()
	_ = h.local.Clear(context.Background())
}

// handleInvalidation evicts a locally-cached key unless this process marked
// it recently-updated within selfOriginWindow (self-origin suppression,
// spec §4.3).
func (h *Backend) handleInvalidation(key string) {
	h.mu.Lock()
	t, ok := h.recent[key]
	delete(h.absent, key)
	if ok && time.Since(t) < selfOriginWindow {
		delete(h.recent, key)
		h.mu.Unlock()
		return
	}
	delete(h.recent, key)
	h.mu.Unlock()

	if _, err := h.local.Delete(context.Background(), key); err != nil {
		h.log.WithError(err).WithField("key", key).Warn("fluxkv: local eviction on invalidation failed")
	}
}

func (h *Backend) markRecent(key string) {
	h.mu.Lock()
	h.recent[key] = time.Now()
	delete(h.absent, key)
	h.mu.Unlock()
}

func (h *Backend) markAbsent(key string) {
	h.mu.Lock()
	h.absent[key] = struct{}{}
	h.mu.Unlock()
}

func (h *Backend) knownAbsent(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.absent[key]
	return ok
}

func (h *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := h.Backend.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	h.markRecent(key)
	return h.local.Set(ctx, key, value, ttl)
}

// Get serves from the local cache only while the invalidation listener is
// ready, per spec §4.3: an unready local cache may be silently stale, so
// every read is forced through the remote backend until the subscription
// is re-established. A remote miss is recorded as known-absent so repeat
// lookups for a genuinely missing key don't keep round-tripping remote.
func (h *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if h.ready.Load() {
		if h.knownAbsent(key) {
			return nil, false, nil
		}
		if v, ok, err := h.local.Get(ctx, key); err == nil && ok {
			return v, true, nil
		}
	}

	v, ok, err := h.Backend.Get(ctx, key)
	if err != nil {
		return v, ok, err
	}
	if !ok {
		if h.ready.Load() {
			h.markAbsent(key)
		}
		return v, ok, err
	}
	_ = h.local.Set(ctx, key, v, 0)
	return v, true, nil
}

func (h *Backend) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := h.Backend.Delete(ctx, key)
	h.markRecent(key)
	_, _ = h.local.Delete(ctx, key)
	return ok, err
}

func (h *Backend) Clear(ctx context.Context) error {
	if err := h.Backend.Clear(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.absent = make(map[string]struct{})
	h.mu.Unlock()
	return h.local.Clear(ctx)
}

// Package txn implements the transactional overlay backend (spec §4.4):
// FAST mode buffers writes and tombstones with no locking at all, LOCKED
// mode takes a per-key lock on first write to that key, and SERIALIZABLE
// mode takes one global lock for the whole transaction. A transaction is
// carried on the context, so a nested Begin joins the outer transaction
// instead of starting a new one (spec §9 open question).
package txn

import (
	"context"
	"sync"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/google/uuid"
)

// Mode selects the overlay's concurrency strategy.
type Mode int

const (
	ModeFast Mode = iota
	ModeLocked
	ModeSerializable
)

const (
	lockTTL        = 30 * time.Second
	serializableLk = "_txn:serializable"
)

type txnCtxKey struct{}

// Txn accumulates writes and deletes for one transaction. Commit flushes
// them to the underlying backend; Rollback discards them.
type Txn struct {
	mode    Mode
	id      string
	backend backend.Backend

	mu         sync.Mutex
	writes     map[string][]byte
	ttls       map[string]time.Duration
	tombstones map[string]bool
	heldLocks  []string
}

func fromContext(ctx context.Context) *Txn {
	t, _ := ctx.Value(txnCtxKey{}).(*Txn)
	return t
}

func withTxn(ctx context.Context, t *Txn) context.Context {
	return context.WithValue(ctx, txnCtxKey{}, t)
}

// Backend wraps an underlying backend.Backend with transactional
// semantics. Every Backend method not overridden below (Ping, GetSize,
// locks, bit ops, sets...) passes straight through to the underlying
// backend via the embedded field, matching the original's proxy-backend
// pattern for operations a transaction does not buffer.
type Backend struct {
	backend.Backend
	mode Mode
}

// New builds a transactional overlay around underlying in the given mode.
func New(underlying backend.Backend, mode Mode) *Backend {
	return &Backend{Backend: underlying, mode: mode}
}

// Begin starts (or joins) a transaction, returning a context carrying it
// and a release function. release(true) commits, release(false) rolls
// back. A nested Begin on a context that already carries a transaction
// returns that same transaction and a no-op release, so only the
// outermost Begin/release pair actually commits or rolls back.
func (b *Backend) Begin(ctx context.Context) (context.Context, func(commit bool) error, error) {
	if existing := fromContext(ctx); existing != nil {
		return ctx, func(bool) error { return nil }, nil
	}

	t := &Txn{
		mode:       b.mode,
		id:         uuid.NewString(),
		backend:    b.Backend,
		writes:     make(map[string][]byte),
		ttls:       make(map[string]time.Duration),
		tombstones: make(map[string]bool),
	}

	if b.mode == ModeSerializable {
		ok, err := b.Backend.SetLock(ctx, serializableLk, t.id, lockTTL)
		if err != nil {
			return ctx, nil, err
		}
		if !ok {
			return ctx, nil, &cachepkg.LockedError{Key: serializableLk, Reason: "a serializable transaction is already in progress"}
		}
		t.heldLocks = append(t.heldLocks, serializableLk)
	}

	newCtx := withTxn(ctx, t)
	release := func(commit bool) error {
		defer t.releaseLocks(ctx)
		if !commit {
			return nil
		}
		return t.flush(ctx)
	}
	return newCtx, release, nil
}

func (t *Txn) releaseLocks(ctx context.Context) {
	t.mu.Lock()
	locks := t.heldLocks
	t.heldLocks = nil
	t.mu.Unlock()
	for _, key := range locks {
		_, _ = t.backend.Unlock(ctx, key, t.id)
	}
}

func (t *Txn) flush(ctx context.Context) error {
	t.mu.Lock()
	writes := t.writes
	ttls := t.ttls
	tombstones := t.tombstones
	t.mu.Unlock()

	for key, value := range writes {
		if err := t.backend.Set(ctx, key, value, ttls[key]); err != nil {
			return err
		}
	}
	for key := range tombstones {
		if _, err := t.backend.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// lockKeyFor acquires the per-key lock a LOCKED-mode transaction needs
// before its first write to key, idempotently.
func (t *Txn) lockKeyFor(ctx context.Context, key string) error {
	if t.mode != ModeLocked {
		return nil
	}
	t.mu.Lock()
	for _, held := range t.heldLocks {
		if held == "_txn:"+key {
			t.mu.Unlock()
			return nil
		}
	}
	t.mu.Unlock()

	ok, err := t.backend.SetLock(ctx, "_txn:"+key, t.id, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return &cachepkg.LockedError{Key: key, Reason: "held by another transaction"}
	}
	t.mu.Lock()
	t.heldLocks = append(t.heldLocks, "_txn:"+key)
	t.mu.Unlock()
	return nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t := fromContext(ctx)
	if t == nil {
		return b.Backend.Set(ctx, key, value, ttl)
	}
	if err := t.lockKeyFor(ctx, key); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[key] = value
	t.ttls[key] = ttl
	delete(t.tombstones, key)
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t := fromContext(ctx)
	if t == nil {
		return b.Backend.Get(ctx, key)
	}
	t.mu.Lock()
	if t.tombstones[key] {
		t.mu.Unlock()
		return nil, false, nil
	}
	if v, ok := t.writes[key]; ok {
		t.mu.Unlock()
		return v, true, nil
	}
	t.mu.Unlock()
	return b.Backend.Get(ctx, key)
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	t := fromContext(ctx)
	if t == nil {
		return b.Backend.Delete(ctx, key)
	}
	if err := t.lockKeyFor(ctx, key); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.writes[key]
	delete(t.writes, key)
	t.tombstones[key] = true
	return existed, nil
}

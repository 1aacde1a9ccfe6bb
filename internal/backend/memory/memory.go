// Package memory implements the in-process LRU reference backend (spec
// §4.2): an ordered map with capacity eviction and per-entry expiry,
// grounded on the janitor/item-store shape used by the teacher's
// supporting examples (periodic ticker sweep over a mutex-guarded map).
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

type entry struct {
	value     []byte
	set       map[string]struct{}
	expiresAt time.Time // zero value means no expiry
	elem      *listElem
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Backend is an in-memory, capacity-bounded cache backend. Zero value is
// not usable; construct with New.
type Backend struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    *lru
	capacity int
	onRemove func(key string)

	slices map[string]*sliceCounter
}

// New builds a Backend. capacity <= 0 means unbounded.
func New(capacity int) *Backend {
	return &Backend{
		entries:  make(map[string]*entry),
		order:    newLRU(),
		capacity: capacity,
		slices:   make(map[string]*sliceCounter),
	}
}

func (b *Backend) SetOnRemoveCallback(fn func(key string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRemove = fn
}

func (b *Backend) notifyRemoved(key string) {
	if b.onRemove != nil {
		b.onRemove(key)
	}
}

func (b *Backend) Ping(ctx context.Context) error { return nil }

func (b *Backend) Close(ctx context.Context) error { return nil }

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(key, value, ttl)
	return nil
}

func (b *Backend) setLocked(key string, value []byte, ttl time.Duration) {
	e, ok := b.entries[key]
	if !ok {
		e = &entry{}
		b.entries[key] = e
		e.elem = b.order.pushFront(key)
	} else {
		b.order.moveToFront(e.elem)
	}
	e.value = value
	e.set = nil
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	b.evictIfNeeded()
}

func (b *Backend) evictIfNeeded() {
	if b.capacity <= 0 {
		return
	}
	for len(b.entries) > b.capacity {
		key, ok := b.order.popBack()
		if !ok {
			return
		}
		delete(b.entries, key)
		b.notifyRemoved(key)
	}
}

func (b *Backend) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range items {
		b.setLocked(k, v, ttl)
	}
	return nil
}

// getLocked returns the entry for key, evicting and reporting a miss if it
// has expired.
func (b *Backend) getLocked(key string) (*entry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		b.removeLocked(key)
		return nil, false
	}
	return e, true
}

func (b *Backend) removeLocked(key string) bool {
	e, ok := b.entries[key]
	if !ok {
		return false
	}
	b.order.remove(e.elem)
	delete(b.entries, key)
	b.notifyRemoved(key)
	return true
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok {
		return nil, false, nil
	}
	b.order.moveToFront(e.elem)
	return e.value, true, nil
}

func (b *Backend) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if e, ok := b.getLocked(k); ok {
			out[k] = e.value
		}
	}
	return out, nil
}

func globToRegexp(pattern string) (func(string) bool, error) {
	_, err := path.Match(pattern, "")
	if err != nil {
		return nil, fmt.Errorf("fluxkv: invalid glob pattern %q: %w", pattern, err)
	}
	return func(s string) bool {
		ok, _ := path.Match(pattern, s)
		return ok
	}, nil
}

func (b *Backend) GetMatch(ctx context.Context, pattern string, count int) (map[string][]byte, error) {
	match, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]byte)
	now := time.Now()
	keys := b.sortedKeysLocked()
	for _, k := range keys {
		if count > 0 && len(out) >= count {
			break
		}
		e := b.entries[k]
		if e.expired(now) || e.set != nil || !match(k) {
			continue
		}
		out[k] = e.value
	}
	return out, nil
}

func (b *Backend) Scan(ctx context.Context, pattern string, count int) ([]string, error) {
	match, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	var out []string
	for _, k := range b.sortedKeysLocked() {
		if count > 0 && len(out) >= count {
			break
		}
		e := b.entries[k]
		if e.expired(now) || !match(k) {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (b *Backend) sortedKeysLocked() []string {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Backend) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	var cur int64
	var ttl time.Duration
	if ok {
		fmt.Sscanf(string(e.value), "%d", &cur)
		if !e.expiresAt.IsZero() {
			ttl = time.Until(e.expiresAt)
		}
	}
	cur += delta
	b.setLocked(key, []byte(fmt.Sprintf("%d", cur)), ttl)
	return cur, nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(key), nil
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range keys {
		if b.removeLocked(k) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) DeleteMatch(ctx context.Context, pattern string) (int, error) {
	match, err := globToRegexp(pattern)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range b.sortedKeysLocked() {
		if match(k) && b.removeLocked(k) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.getLocked(key)
	return ok, nil
}

func (b *Backend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

func (b *Backend) GetExpire(ctx context.Context, key string) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return time.Until(e.expiresAt), nil
}

// GetBits reads size-wide unsigned fields from the value treated as a
// big-endian bitfield at each index, redis BITFIELD GET semantics (size=1
// reproduces single-bit reads). A nil, nil result means the key has never
// been written (spec §9 open question on the bloom sentinel).
func (b *Backend) GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok {
		return nil, nil
	}
	out := make([]uint64, len(indexes))
	for i, idx := range indexes {
		out[i] = uint64(readBitfield(e.value, idx, size))
	}
	return out, nil
}

func (b *Backend) IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || e.expired(time.Now()) {
		e = &entry{}
		e.elem = b.order.pushFront(key)
		b.entries[key] = e
	} else {
		b.order.moveToFront(e.elem)
	}
	out := make([]int64, len(indexes))
	maxV := int64(1)<<uint(size) - 1
	for i, idx := range indexes {
		v := readBitfield(e.value, idx, size) + int64(by)
		if v < 0 {
			v = 0
		} else if v > maxV {
			v = maxV
		}
		e.value = writeBitfield(e.value, idx, size, v)
		out[i] = v
	}
	b.evictIfNeeded()
	return out, nil
}

func readBit(data []byte, bitIndex int) int {
	byteIdx := bitIndex / 8
	if byteIdx >= len(data) {
		return 0
	}
	shift := uint(7 - bitIndex%8)
	return int((data[byteIdx] >> shift) & 1)
}

func readBitfield(data []byte, bitIndex, size int) int64 {
	var v int64
	for i := 0; i < size; i++ {
		v = v<<1 | int64(readBit(data, bitIndex+i))
	}
	return v
}

func writeBitfield(data []byte, bitIndex, size int, value int64) []byte {
	needed := (bitIndex+size)/8 + 1
	if len(data) < needed {
		grown := make([]byte, needed)
		copy(grown, data)
		data = grown
	}
	for i := size - 1; i >= 0; i-- {
		bit := (value >> uint(i)) & 1
		idx := bitIndex + (size - 1 - i)
		byteIdx := idx / 8
		shift := uint(7 - idx%8)
		if bit == 1 {
			data[byteIdx] |= 1 << shift
		} else {
			data[byteIdx] &^= 1 << shift
		}
	}
	return data
}

// sliceCounter holds the per-second buckets backing one SliceIncr key.
type sliceCounter struct {
	buckets map[int64]int64
}

// SliceIncr increments the current-second bucket (capped at maxValue) and
// returns the bucket values covering the offsets [from, to] seconds
// relative to now, pruning buckets older than ttl. Used by the sliding
// window rate-limit decorator (spec §4.7).
func (b *Backend) SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, ok := b.slices[key]
	if !ok {
		sc = &sliceCounter{buckets: make(map[int64]int64)}
		b.slices[key] = sc
	}

	now := time.Now().Unix()
	if sc.buckets[now] < maxValue {
		sc.buckets[now]++
	}

	if ttl > 0 {
		cutoff := now - int64(ttl/time.Second)
		for t := range sc.buckets {
			if t < cutoff {
				delete(sc.buckets, t)
			}
		}
	}

	out := make([]int64, 0, to-from+1)
	for offset := from; offset <= to; offset++ {
		out = append(out, sc.buckets[now+int64(offset)])
	}
	return out, nil
}

func (b *Backend) SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || e.expired(time.Now()) {
		e = &entry{set: make(map[string]struct{})}
		e.elem = b.order.pushFront(key)
		b.entries[key] = e
	} else {
		b.order.moveToFront(e.elem)
		if e.set == nil {
			e.set = make(map[string]struct{})
		}
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	b.evictIfNeeded()
	return nil
}

func (b *Backend) SetRemove(ctx context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok || e.set == nil {
		return nil
	}
	for _, m := range members {
		delete(e.set, m)
	}
	return nil
}

func (b *Backend) SetPop(ctx context.Context, key string, count int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok || e.set == nil {
		return nil, nil
	}
	out := make([]string, 0, count)
	for m := range e.set {
		if len(out) >= count {
			break
		}
		out = append(out, m)
		delete(e.set, m)
	}
	return out, nil
}

func (b *Backend) SetLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.getLocked(key); ok {
		if string(e.value) == value {
			e.expiresAt = time.Now().Add(ttl)
			return true, nil
		}
		return false, nil
	}
	b.setLocked(key, []byte(value), ttl)
	return true, nil
}

func (b *Backend) IsLocked(ctx context.Context, key string, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok {
		return false, nil
	}
	if value == "" {
		return true, nil
	}
	return string(e.value) == value, nil
}

func (b *Backend) Unlock(ctx context.Context, key string, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.getLocked(key)
	if !ok {
		return false, nil
	}
	if string(e.value) != value {
		return false, &cachepkg.LockedError{Key: key, Reason: "owner mismatch"}
	}
	b.removeLocked(key)
	return true, nil
}

func (b *Backend) GetSize(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, e := range b.entries {
		total += int64(len(e.value))
		for m := range e.set {
			total += int64(len(m))
		}
	}
	return total, nil
}

func (b *Backend) GetKeysCount(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.entries)), nil
}

func (b *Backend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.entries {
		b.notifyRemoved(k)
	}
	b.entries = make(map[string]*entry)
	b.order = newLRU()
	b.slices = make(map[string]*sliceCounter)
	return nil
}

// sweepExpired removes every entry past its expiry. Called by the janitor
// on a fixed interval (janitor.go).
func (b *Backend) sweepExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for k, e := range b.entries {
		if e.expired(now) {
			b.order.remove(e.elem)
			delete(b.entries, k)
			b.notifyRemoved(k)
		}
	}
}

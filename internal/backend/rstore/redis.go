// Package rstore implements the reference remote backend over a real
// Redis wire protocol via go-redis, serving as the storage half of the
// client-side hybrid backend (spec §4.3) and usable standalone behind the
// facade. ParseURL accepts the "redis://" scheme but does not construct
// this backend.
package rstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/redis/go-redis/v9"
)

// Backend adapts a *redis.Client to the backend.Backend contract.
type Backend struct {
	client   *redis.Client
	onRemove func(key string)
}

// New wraps an already-configured go-redis client. Callers on the
// client-side hybrid path construct the client themselves so they can also
// subscribe to its invalidation channel.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) wrap(op string, err error) error {
	if err == nil || err == redis.Nil {
		return nil
	}
	return &cachepkg.BackendError{Backend: "redis", Op: op, Err: err}
}

// SetOnRemoveCallback stores fn, but no method of this backend invokes it:
// deletes, expiry and evictions on the Redis side fire no callback.
func (b *Backend) SetOnRemoveCallback(fn func(key string)) { b.onRemove = fn }

func (b *Backend) Ping(ctx context.Context) error {
	return b.wrap("ping", b.client.Ping(ctx).Err())
}

func (b *Backend) Close(ctx context.Context) error { return b.client.Close() }

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.wrap("set", b.client.Set(ctx, key, value, ttl).Err())
}

func (b *Backend) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	pipe := b.client.Pipeline()
	for k, v := range items {
		pipe.Set(ctx, k, v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return b.wrap("set_many", err)
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.wrap("get", err)
	}
	return v, true, nil
}

func (b *Backend) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, b.wrap("get_many", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (b *Backend) GetMatch(ctx context.Context, pattern string, count int) (map[string][]byte, error) {
	keys, err := b.Scan(ctx, pattern, count)
	if err != nil {
		return nil, err
	}
	return b.GetMany(ctx, keys)
}

func (b *Backend) Scan(ctx context.Context, pattern string, count int) ([]string, error) {
	var out []string
	iter := b.client.Scan(ctx, 0, pattern, int64(count)).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, b.wrap("scan", iter.Err())
}

func (b *Backend) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := b.client.IncrBy(ctx, key, delta).Result()
	return v, b.wrap("incr", err)
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, key).Result()
	return n > 0, b.wrap("delete", err)
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	return int(n), b.wrap("delete_many", err)
}

func (b *Backend) DeleteMatch(ctx context.Context, pattern string) (int, error) {
	keys, err := b.Scan(ctx, pattern, 0)
	if err != nil {
		return 0, err
	}
	return b.DeleteMany(ctx, keys)
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	return n > 0, b.wrap("exists", err)
}

func (b *Backend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.wrap("expire", b.client.Expire(ctx, key, ttl).Err())
}

func (b *Backend) GetExpire(ctx context.Context, key string) (time.Duration, error) {
	d, err := b.client.TTL(ctx, key).Result()
	if d < 0 {
		d = 0
	}
	return d, b.wrap("get_expire", err)
}

func (b *Backend) GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error) {
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	typ := fmt.Sprintf("u%d", size)
	args := make([]any, 0, len(indexes)*3)
	for _, idx := range indexes {
		args = append(args, "GET", typ, idx)
	}
	res, err := b.client.BitField(ctx, key, args...).Result()
	if err != nil {
		return nil, b.wrap("get_bits", err)
	}
	out := make([]uint64, len(res))
	for i, v := range res {
		out[i] = uint64(v)
	}
	return out, nil
}

func (b *Backend) IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error) {
	args := make([]any, 0, len(indexes)*4+2)
	args = append(args, "OVERFLOW", "SAT")
	typ := fmt.Sprintf("u%d", size)
	for _, idx := range indexes {
		args = append(args, "INCRBY", typ, idx, by)
	}
	res, err := b.client.BitField(ctx, key, args...).Result()
	if err != nil {
		return nil, b.wrap("incr_bits", err)
	}
	return res, nil
}

func (b *Backend) SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error) {
	now := time.Now().Unix()
	bucketKey := fmt.Sprintf("%s:%d", key, now)
	pipe := b.client.Pipeline()
	incr := pipe.IncrBy(ctx, bucketKey, 1)
	pipe.Expire(ctx, bucketKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, b.wrap("slice_incr", err)
	}
	if incr.Val() > maxValue {
		b.client.Set(ctx, bucketKey, maxValue, ttl)
	}

	out := make([]int64, 0, to-from+1)
	for offset := from; offset <= to; offset++ {
		k := fmt.Sprintf("%s:%d", key, now+int64(offset))
		v, err := b.client.Get(ctx, k).Int64()
		if err == redis.Nil {
			v = 0
		} else if err != nil {
			return nil, b.wrap("slice_incr", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Backend) SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	pipe := b.client.Pipeline()
	pipe.SAdd(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return b.wrap("set_add", err)
}

func (b *Backend) SetRemove(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return b.wrap("set_remove", b.client.SRem(ctx, key, args...).Err())
}

func (b *Backend) SetPop(ctx context.Context, key string, count int) ([]string, error) {
	v, err := b.client.SPopN(ctx, key, int64(count)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, b.wrap("set_pop", err)
}

func (b *Backend) SetLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetNX(ctx, key, value, ttl).Result()
	return ok, b.wrap("set_lock", err)
}

func (b *Backend) IsLocked(ctx context.Context, key string, value string) (bool, error) {
	v, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, b.wrap("is_locked", err)
	}
	if value == "" {
		return true, nil
	}
	return v == value, nil
}

// unlockScript deletes the key only if its value still matches, the
// standard compare-and-delete pattern for Redis-backed locks.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

func (b *Backend) Unlock(ctx context.Context, key string, value string) (bool, error) {
	n, err := unlockScript.Run(ctx, b.client, []string{key}, value).Int()
	if err != nil {
		return false, b.wrap("unlock", err)
	}
	return n > 0, nil
}

func (b *Backend) GetSize(ctx context.Context) (int64, error) {
	info, err := b.client.MemoryUsage(ctx, "__fluxkv_size_probe__").Result()
	if err != nil {
		return 0, nil
	}
	return info, nil
}

func (b *Backend) GetKeysCount(ctx context.Context) (int64, error) {
	n, err := b.client.DBSize(ctx).Result()
	return n, b.wrap("get_keys_count", err)
}

func (b *Backend) Clear(ctx context.Context) error {
	return b.wrap("clear", b.client.FlushDB(ctx).Err())
}

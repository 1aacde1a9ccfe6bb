// Package facade implements the prefix-routing cache facade (spec §2
// "Facade", §4.5): a single entry point that routes each key to the
// backend registered for its longest matching prefix and runs every
// command through that backend's middleware chain.
package facade

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/sirupsen/logrus"
)

type route struct {
	prefix      string
	backend     backend.Backend
	middlewares []Middleware
}

// Cache is the facade applications depend on. The zero value is not ready
// for use; construct with New and call Setup at least once before issuing
// commands, mirroring spec §7's ErrNotConfigured.
type Cache struct {
	mu     sync.RWMutex
	routes []route
	log    *logrus.Logger
}

// New builds an empty Cache. log may be nil, in which case
// logrus.StandardLogger is used.
func New(log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{log: log}
}

// Setup registers b as the backend for every key beginning with prefix.
// An empty prefix matches everything and should be registered last (or
// only once) as a catch-all; routes are tried longest-prefix-first
// regardless of registration order.
func (c *Cache) Setup(prefix string, b backend.Backend, mws ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route{prefix: prefix, backend: b, middlewares: mws})
	sort.SliceStable(c.routes, func(i, j int) bool {
		return len(c.routes[i].prefix) > len(c.routes[j].prefix)
	})
}

func (c *Cache) resolve(key string) (route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.routes {
		if strings.HasPrefix(key, r.prefix) {
			return r, true
		}
	}
	return route{}, false
}

// Backend returns the concrete backend.Backend routed for key, for
// collaborators (the tag registry, the transaction overlay, decorators)
// that need operations beyond the common command set.
func (c *Cache) Backend(key string) (backend.Backend, bool) {
	r, ok := c.resolve(key)
	return r.backend, ok
}

func (c *Cache) do(ctx context.Context, cmd cachepkg.Command, key string, fn func(ctx context.Context, b backend.Backend) (any, error)) (any, error) {
	r, ok := c.resolve(key)
	if !ok {
		return nil, cachepkg.ErrNotConfigured
	}
	terminal := func(ctx context.Context) (any, error) { return fn(ctx, r.backend) }
	mws := make([]Middleware, 0, len(r.middlewares)+2)
	mws = append(mws, disableMiddleware)
	mws = append(mws, r.middlewares...)
	mws = append(mws, invalidateFurtherMiddleware(func(ctx context.Context, key string) (any, error) {
		if cachepkg.PatternCommands[cmd] {
			return r.backend.DeleteMatch(ctx, key)
		}
		ok, err := r.backend.Delete(ctx, key)
		return ok, err
	}))
	return chain(mws, cmd, key, terminal)(ctx)
}

type getResult struct {
	value []byte
	ok    bool
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := c.do(ctx, cachepkg.CmdGet, key, func(ctx context.Context, b backend.Backend) (any, error) {
		v, ok, err := b.Get(ctx, key)
		return getResult{v, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	gr, _ := res.(getResult)
	detectorFrom(ctx).Record(key, 0, gr.ok)
	return gr.value, gr.ok, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.do(ctx, cachepkg.CmdSet, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return nil, b.Set(ctx, key, value, ttl)
	})
	return err
}

// groupKeysByBackend buckets keys by the route each resolves to (longest
// prefix match), so a multi-key command can issue one subcommand per
// distinct backend instead of silently routing everything through whichever
// backend the first key happens to belong to (spec §4.5, "Multi-key
// commands"). The representative key of each group is its first member,
// used only to re-resolve the route inside c.do.
func (c *Cache) groupKeysByBackend(keys []string) map[string][]string {
	groups := make(map[string][]string)
	for _, k := range keys {
		r, ok := c.resolve(k)
		prefix := r.prefix
		if !ok {
			prefix = k // unresolved keys get their own group; do() will fail them individually
		}
		groups[prefix] = append(groups[prefix], k)
	}
	return groups
}

func (c *Cache) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	for _, group := range c.groupKeysByBackend(keys) {
		subset := make(map[string][]byte, len(group))
		for _, k := range group {
			subset[k] = items[k]
		}
		_, err := c.do(ctx, cachepkg.CmdSetMany, group[0], func(ctx context.Context, b backend.Backend) (any, error) {
			return nil, b.SetMany(ctx, subset, ttl)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	out := make(map[string][]byte, len(keys))
	for _, group := range c.groupKeysByBackend(keys) {
		res, err := c.do(ctx, cachepkg.CmdGetMany, group[0], func(ctx context.Context, b backend.Backend) (any, error) {
			return b.GetMany(ctx, group)
		})
		if err != nil {
			return nil, err
		}
		part, _ := res.(map[string][]byte)
		for k, v := range part {
			out[k] = v
		}
	}
	return out, nil
}

func (c *Cache) GetMatch(ctx context.Context, pattern string, count int) (map[string][]byte, error) {
	res, err := c.do(ctx, cachepkg.CmdGetMatch, pattern, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.GetMatch(ctx, pattern, count)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.(map[string][]byte)
	return out, nil
}

func (c *Cache) Scan(ctx context.Context, pattern string, count int) ([]string, error) {
	res, err := c.do(ctx, cachepkg.CmdScan, pattern, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.Scan(ctx, pattern, count)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]string)
	return out, nil
}

func (c *Cache) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	res, err := c.do(ctx, cachepkg.CmdIncr, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.Incr(ctx, key, delta)
	})
	if err != nil {
		return 0, err
	}
	n, _ := res.(int64)
	return n, nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	res, err := c.do(ctx, cachepkg.CmdDelete, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.Delete(ctx, key)
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

func (c *Cache) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	total := 0
	for _, group := range c.groupKeysByBackend(keys) {
		res, err := c.do(ctx, cachepkg.CmdDeleteMany, group[0], func(ctx context.Context, b backend.Backend) (any, error) {
			return b.DeleteMany(ctx, group)
		})
		if err != nil {
			return total, err
		}
		n, _ := res.(int)
		total += n
	}
	return total, nil
}

func (c *Cache) DeleteMatch(ctx context.Context, pattern string) (int, error) {
	res, err := c.do(ctx, cachepkg.CmdDeleteMatch, pattern, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.DeleteMatch(ctx, pattern)
	})
	if err != nil {
		return 0, err
	}
	n, _ := res.(int)
	return n, nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	res, err := c.do(ctx, cachepkg.CmdExists, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.Exists(ctx, key)
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := c.do(ctx, cachepkg.CmdExpire, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return nil, b.Expire(ctx, key, ttl)
	})
	return err
}

func (c *Cache) GetExpire(ctx context.Context, key string) (time.Duration, error) {
	res, err := c.do(ctx, cachepkg.CmdGetExpire, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.GetExpire(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	d, _ := res.(time.Duration)
	return d, nil
}

func (c *Cache) GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error) {
	res, err := c.do(ctx, cachepkg.CmdGetBits, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.GetBits(ctx, key, size, indexes...)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]uint64)
	return out, nil
}

func (c *Cache) IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error) {
	res, err := c.do(ctx, cachepkg.CmdIncrBits, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.IncrBits(ctx, key, indexes, by, size)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]int64)
	return out, nil
}

func (c *Cache) SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error) {
	res, err := c.do(ctx, cachepkg.CmdSliceIncr, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.SliceIncr(ctx, key, from, to, maxValue, ttl)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]int64)
	return out, nil
}

func (c *Cache) SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	_, err := c.do(ctx, cachepkg.CmdSetAdd, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return nil, b.SetAdd(ctx, key, ttl, members...)
	})
	return err
}

func (c *Cache) SetRemove(ctx context.Context, key string, members ...string) error {
	_, err := c.do(ctx, cachepkg.CmdSetRemove, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return nil, b.SetRemove(ctx, key, members...)
	})
	return err
}

func (c *Cache) SetPop(ctx context.Context, key string, count int) ([]string, error) {
	res, err := c.do(ctx, cachepkg.CmdSetPop, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.SetPop(ctx, key, count)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.([]string)
	return out, nil
}

func (c *Cache) SetLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := c.do(ctx, cachepkg.CmdSetLock, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.SetLock(ctx, key, value, ttl)
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

func (c *Cache) IsLocked(ctx context.Context, key, value string) (bool, error) {
	res, err := c.do(ctx, cachepkg.CmdIsLocked, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.IsLocked(ctx, key, value)
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

func (c *Cache) Unlock(ctx context.Context, key, value string) (bool, error) {
	res, err := c.do(ctx, cachepkg.CmdUnlock, key, func(ctx context.Context, b backend.Backend) (any, error) {
		return b.Unlock(ctx, key, value)
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// Ping checks every registered backend's connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	c.mu.RLock()
	routes := append([]route(nil), c.routes...)
	c.mu.RUnlock()
	for _, r := range routes {
		if err := r.backend.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Clear clears every registered backend.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.RLock()
	routes := append([]route(nil), c.routes...)
	c.mu.RUnlock()
	for _, r := range routes {
		if err := r.backend.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

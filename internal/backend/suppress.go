package backend

import (
	"context"
	"errors"
	"time"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/sirupsen/logrus"
)

// Suppress wraps a Backend so that any *cachepkg.BackendError it returns is
// swallowed and replaced with a command-appropriate neutral default, per
// spec §7 ("suppress" connection option). Ping is exempt: a caller that
// explicitly probes liveness must see the real failure.
type Suppress struct {
	Backend
	log *logrus.Logger
}

// NewSuppress wraps b. log may be nil, in which case logrus.StandardLogger
// is used.
func NewSuppress(b Backend, log *logrus.Logger) *Suppress {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Suppress{Backend: b, log: log}
}

func (s *Suppress) guard(op string, err error) error {
	var be *cachepkg.BackendError
	if errors.As(err, &be) {
		s.log.WithFields(logrus.Fields{"op": op, "backend": be.Backend}).
			WithError(err).Warn("fluxkv: suppressing backend error")
		return nil
	}
	return err
}

func (s *Suppress) Ping(ctx context.Context) error { return s.Backend.Ping(ctx) }

func (s *Suppress) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.guard("set", s.Backend.Set(ctx, key, value, ttl))
}

func (s *Suppress) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	return s.guard("set_many", s.Backend.SetMany(ctx, items, ttl))
}

func (s *Suppress) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := s.Backend.Get(ctx, key)
	if guarded := s.guard("get", err); guarded != err {
		return nil, false, guarded
	}
	return v, ok, err
}

func (s *Suppress) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	v, err := s.Backend.GetMany(ctx, keys)
	if g := s.guard("get_many", err); g != err {
		return map[string][]byte{}, nil
	}
	return v, err
}

func (s *Suppress) GetMatch(ctx context.Context, pattern string, count int) (map[string][]byte, error) {
	v, err := s.Backend.GetMatch(ctx, pattern, count)
	if g := s.guard("get_match", err); g != err {
		return map[string][]byte{}, nil
	}
	return v, err
}

func (s *Suppress) Scan(ctx context.Context, pattern string, count int) ([]string, error) {
	v, err := s.Backend.Scan(ctx, pattern, count)
	if g := s.guard("scan", err); g != err {
		return nil, nil
	}
	return v, err
}

func (s *Suppress) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := s.Backend.Incr(ctx, key, delta)
	if g := s.guard("incr", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) Delete(ctx context.Context, key string) (bool, error) {
	v, err := s.Backend.Delete(ctx, key)
	if g := s.guard("delete", err); g != err {
		return false, nil
	}
	return v, err
}

func (s *Suppress) DeleteMany(ctx context.Context, keys []string) (int, error) {
	v, err := s.Backend.DeleteMany(ctx, keys)
	if g := s.guard("delete_many", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) DeleteMatch(ctx context.Context, pattern string) (int, error) {
	v, err := s.Backend.DeleteMatch(ctx, pattern)
	if g := s.guard("delete_match", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) Exists(ctx context.Context, key string) (bool, error) {
	v, err := s.Backend.Exists(ctx, key)
	if g := s.guard("exists", err); g != err {
		return false, nil
	}
	return v, err
}

func (s *Suppress) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.guard("expire", s.Backend.Expire(ctx, key, ttl))
}

func (s *Suppress) GetExpire(ctx context.Context, key string) (time.Duration, error) {
	v, err := s.Backend.GetExpire(ctx, key)
	if g := s.guard("get_expire", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) GetBits(ctx context.Context, key string, size int, indexes ...int) ([]uint64, error) {
	v, err := s.Backend.GetBits(ctx, key, size, indexes...)
	if g := s.guard("get_bits", err); g != err {
		return nil, nil
	}
	return v, err
}

func (s *Suppress) IncrBits(ctx context.Context, key string, indexes []int, by int, size int) ([]int64, error) {
	v, err := s.Backend.IncrBits(ctx, key, indexes, by, size)
	if g := s.guard("incr_bits", err); g != err {
		return nil, nil
	}
	return v, err
}

func (s *Suppress) SliceIncr(ctx context.Context, key string, from, to int, maxValue int64, ttl time.Duration) ([]int64, error) {
	v, err := s.Backend.SliceIncr(ctx, key, from, to, maxValue, ttl)
	if g := s.guard("slice_incr", err); g != err {
		return nil, nil
	}
	return v, err
}

func (s *Suppress) SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	return s.guard("set_add", s.Backend.SetAdd(ctx, key, ttl, members...))
}

func (s *Suppress) SetRemove(ctx context.Context, key string, members ...string) error {
	return s.guard("set_remove", s.Backend.SetRemove(ctx, key, members...))
}

func (s *Suppress) SetPop(ctx context.Context, key string, count int) ([]string, error) {
	v, err := s.Backend.SetPop(ctx, key, count)
	if g := s.guard("set_pop", err); g != err {
		return nil, nil
	}
	return v, err
}

func (s *Suppress) SetLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	v, err := s.Backend.SetLock(ctx, key, value, ttl)
	if g := s.guard("set_lock", err); g != err {
		return false, nil
	}
	return v, err
}

func (s *Suppress) IsLocked(ctx context.Context, key string, value string) (bool, error) {
	v, err := s.Backend.IsLocked(ctx, key, value)
	if g := s.guard("is_locked", err); g != err {
		return false, nil
	}
	return v, err
}

func (s *Suppress) Unlock(ctx context.Context, key string, value string) (bool, error) {
	v, err := s.Backend.Unlock(ctx, key, value)
	if g := s.guard("unlock", err); g != err {
		return false, nil
	}
	return v, err
}

func (s *Suppress) GetSize(ctx context.Context) (int64, error) {
	v, err := s.Backend.GetSize(ctx)
	if g := s.guard("get_size", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) GetKeysCount(ctx context.Context) (int64, error) {
	v, err := s.Backend.GetKeysCount(ctx)
	if g := s.guard("get_keys_count", err); g != err {
		return 0, nil
	}
	return v, err
}

func (s *Suppress) Clear(ctx context.Context) error {
	return s.guard("clear", s.Backend.Clear(ctx))
}

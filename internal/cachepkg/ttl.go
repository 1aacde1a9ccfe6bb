package cachepkg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TTL is either a fixed duration or a function of the call that produced the
// value being cached (spec §4.11 and the `TTL` type alias in the original).
// Decorators accept either shape; ResolveTTL collapses both to a
// time.Duration (0 meaning "no expiry").
type TTL struct {
	fixed    time.Duration
	fixedSet bool
	fn       func(args ...any) time.Duration
}

// Fixed builds a TTL from a constant duration.
func Fixed(d time.Duration) TTL { return TTL{fixed: d, fixedSet: true} }

// Func builds a TTL that is computed per call, mirroring the Python source's
// `callable(ttl)` branch in ttl_to_seconds.
func Func(f func(args ...any) time.Duration) TTL { return TTL{fn: f} }

// Resolve returns the concrete duration for this call's arguments.
func (t TTL) Resolve(args ...any) time.Duration {
	if t.fn != nil {
		return t.fn(args...)
	}
	return t.fixed
}

// IsZero reports whether the TTL carries no duration at all (unset fixed
// TTL and no function); used to tell "cache forever" apart from
// "this TTL parameter was never set".
func (t TTL) IsZero() bool { return t.fn == nil && !t.fixedSet }

// ParseDuration parses human-readable durations such as "10m", "1h30s",
// "90" (bare seconds) the way the original's ttl.py:_ttl_from_str does:
// accumulate digits, then multiply by the unit's duration when a unit
// character is seen. A string of digits alone is read as seconds; digits
// left over after a unit ("1h30") are rejected.
func ParseDuration(s string) (time.Duration, error) {
	units := map[byte]time.Duration{
		'd': 24 * time.Hour,
		'h': time.Hour,
		'm': time.Minute,
		's': time.Second,
	}

	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("fluxkv: empty ttl string")
	}

	var result time.Duration
	var digits strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits.WriteByte(c)
		case units[c] != 0:
			if digits.Len() == 0 {
				return 0, fmt.Errorf("fluxkv: ttl %q has wrong string representation", s)
			}
			n, err := strconv.ParseInt(digits.String(), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("fluxkv: ttl %q has wrong string representation: %w", s, err)
			}
			result += time.Duration(n) * units[c]
			digits.Reset()
		default:
			return 0, fmt.Errorf("fluxkv: ttl %q has wrong string representation", s)
		}
	}
	if digits.Len() > 0 {
		if result != 0 {
			return 0, fmt.Errorf("fluxkv: ttl %q has wrong string representation", s)
		}
		n, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Second, nil
	}
	return result, nil
}

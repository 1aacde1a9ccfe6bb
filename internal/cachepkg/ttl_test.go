package cachepkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"90", 90 * time.Second},
		{"10m", 10 * time.Minute},
		{"1h30s", time.Hour + 30*time.Second},
		{"2d", 48 * time.Hour},
		{"1d2h3m4s", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseDurationInvalid(t *testing.T) {
	_, err := ParseDuration("abc")
	assert.Error(t, err)

	_, err = ParseDuration("")
	assert.Error(t, err)

	_, err = ParseDuration("10x")
	assert.Error(t, err)
}

func TestTTLResolve(t *testing.T) {
	fixed := Fixed(5 * time.Second)
	assert.Equal(t, 5*time.Second, fixed.Resolve())
	assert.False(t, fixed.IsZero())

	dyn := Func(func(args ...any) time.Duration {
		if len(args) > 0 {
			return time.Minute
		}
		return time.Second
	})
	assert.Equal(t, time.Minute, dyn.Resolve("x"))
	assert.Equal(t, time.Second, dyn.Resolve())

	var unset TTL
	assert.True(t, unset.IsZero())
}

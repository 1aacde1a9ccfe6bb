package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerFastPath(t *testing.T) {
	s := New(nil)
	raw, err := s.Encode(42)
	require.NoError(t, err)
	assert.Equal(t, []byte("i42"), raw)

	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestBytesRoundTrip(t *testing.T) {
	s := New(nil)
	raw, err := s.Encode([]byte("hello"))
	require.NoError(t, err)
	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestGobFallbackRoundTrip(t *testing.T) {
	s := New(nil)
	raw, err := s.Encode([]string{"a", "b", "c"})
	require.NoError(t, err)
	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

type point struct{ X, Y int }

func TestCustomCodec(t *testing.T) {
	s := New(nil)
	s.RegisterCodec("point", point{}, CodecFunc{
		EncodeFn: func(v any) ([]byte, error) {
			p := v.(point)
			return []byte{byte(p.X), byte(p.Y)}, nil
		},
		DecodeFn: func(data []byte) (any, error) {
			return point{X: int(data[0]), Y: int(data[1])}, nil
		},
	})

	raw, err := s.Encode(point{X: 3, Y: 4})
	require.NoError(t, err)
	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, point{X: 3, Y: 4}, v)
}

func TestSignedEnvelopeRejectsTamper(t *testing.T) {
	signer := HashSigner{Secret: []byte("k"), Digest: "sha256"}
	s := New(signer)

	raw, err := s.Encode("value")
	require.NoError(t, err)

	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = s.Decode(tampered)
	assert.Error(t, err)

	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestNullSignerPassthrough(t *testing.T) {
	s := New(NullSigner{})
	raw, err := s.Encode(7)
	require.NoError(t, err)
	v, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

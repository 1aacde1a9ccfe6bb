package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFormatBasic(t *testing.T) {
	tpl := Compile("user:{user_id}:profile")
	key, err := tpl.Format(map[string]string{"user_id": "ABC123"})
	require.NoError(t, err)
	assert.Equal(t, "user:abc123:profile", key)
}

func TestTemplateFormatMissingBinding(t *testing.T) {
	tpl := Compile("user:{user_id}:profile")
	key, err := tpl.Format(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "user:*:profile", key)
}

func TestTemplateMatchRoundTrip(t *testing.T) {
	tpl := Compile("user:{user_id}:profile")
	key, err := tpl.Format(map[string]string{"user_id": "42"})
	require.NoError(t, err)

	bindings, ok := tpl.Match(key)
	require.True(t, ok)
	assert.Equal(t, "42", bindings["user_id"])
}

func TestTemplateMatchRejectsShape(t *testing.T) {
	tpl := Compile("user:{user_id}:profile")
	_, ok := tpl.Match("totally:different:shape:here")
	assert.False(t, ok)
}

func TestHashFormatter(t *testing.T) {
	tpl := Compile("token:{value:hash(sha256)}")
	key, err := tpl.Format(map[string]string{"value": "secret"})
	require.NoError(t, err)
	assert.Contains(t, key, "token:")
	assert.NotContains(t, key, "secret")
	assert.Len(t, key, len("token:")+64)
}

func TestLenUpperLowerFormatters(t *testing.T) {
	tpl := Compile("k:{a:len}:{b:upper}:{c:lower}")
	key, err := tpl.Format(map[string]string{"a": "abcd", "b": "up", "c": "DOWN"})
	require.NoError(t, err)
	assert.Equal(t, "k:4:up:down", key)
}

func TestRegisterFormatter(t *testing.T) {
	RegisterFormatter("reverse", func(value string, args []string) (string, error) {
		runes := []rune(value)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	})
	tpl := Compile("r:{v:reverse}")
	key, err := tpl.Format(map[string]string{"v": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "r:cba", key)
}

func TestPlaceholderNames(t *testing.T) {
	tpl := Compile("{b}:{a}:{b}")
	assert.Equal(t, []string{"a", "b"}, tpl.PlaceholderNames())
}

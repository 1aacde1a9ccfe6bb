package cachekey

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTFormatterExtractsClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
	})
	signed, err := token.SignedString([]byte("any-secret-unverified"))
	require.NoError(t, err)

	tpl := Compile("session:{token:jwt(sub)}")
	key, err := tpl.Format(map[string]string{"token": signed})
	require.NoError(t, err)
	assert.Equal(t, "session:user-9", key)
}

func TestJWTFormatterMissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = jwtFormatter(signed, []string{"missing"})
	assert.Error(t, err)
}

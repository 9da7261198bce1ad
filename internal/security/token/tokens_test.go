package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(32)
	require.NoError(t, err)

	require.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, raw, 32)
}

func TestSHA256Base64URL(t *testing.T) {
	h := SHA256Base64URL("abc")
	raw, err := base64.RawURLEncoding.DecodeString(h)
	require.NoError(t, err)
	require.Len(t, raw, 32)

	require.Equal(t, h, SHA256Base64URL("abc"))
	require.NotEqual(t, h, SHA256Base64URL("abd"))
}

func TestConstantTimeEquals(t *testing.T) {
	require.True(t, ConstantTimeEquals("abc", "abc"))
	require.False(t, ConstantTimeEquals("abc", "abd"))
	require.False(t, ConstantTimeEquals("abc", "abcd"))
}

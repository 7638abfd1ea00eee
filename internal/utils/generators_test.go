package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTrackCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateTrackCode()
		require.NoError(t, err)
		assert.Len(t, code, TrackCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(trackAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestGenerateLinkToken(t *testing.T) {
	a, err := GenerateLinkToken()
	require.NoError(t, err)
	b, err := GenerateLinkToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(raw)*8, 128)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

func TestErrorResponseOmitsEmptyDetail(t *testing.T) {
	resp := ErrorResponse("Order not found", "")
	_, ok := resp["error"]
	assert.False(t, ok)
	assert.Equal(t, false, resp["success"])
}

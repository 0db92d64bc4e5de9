package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocRef(t *testing.T) {
	cases := []struct {
		name string
		ref  string
		want string
	}{
		{"bare id", "abc123xyz", "abc123xyz"},
		{"bare id with whitespace", "  abc123xyz ", "abc123xyz"},
		{"doc URL", "https://docs.getgrist.com/doc/abc123xyz", "abc123xyz"},
		{"doc URL with page", "https://docs.getgrist.com/doc/abc123xyz/p/2", "abc123xyz"},
		{"org-scoped URL", "https://grist.example.com/o/acme/doc/abc123xyz", "abc123xyz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDocRef(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDocRefErrors(t *testing.T) {
	for _, ref := range []string{"", "   ", "https://docs.getgrist.com/", "https://docs.getgrist.com/ws/12"} {
		t.Run(ref, func(t *testing.T) {
			_, err := ParseDocRef(ref)
			require.Error(t, err)
		})
	}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("a", "b"), CacheKey("a", "b"))
	assert.NotEqual(t, CacheKey("a", "b"), CacheKey("ab"))
	assert.NotEqual(t, CacheKey("a", "b"), CacheKey("a,b"))
	assert.Len(t, CacheKey("x"), 64)
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CacheKey creates a deterministic key from its parts, safe against
// separator collisions in the inputs.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}

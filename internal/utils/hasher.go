package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex SHA-256 of parts joined by newlines. Used for
// processed-URL cache keys and content-derived file names.
func Hash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first n hex characters of Hash
func ShortHash(n int, parts ...string) string {
	h := Hash(parts...)
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}

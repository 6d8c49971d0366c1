// Package hashx builds the stable, credential-derived cache keys used by the
// authorization and prefix caches.
package hashx

import (
	"encoding/hex"

	sha256 "github.com/minio/sha256-simd"
)

// Digest returns the lowercase hex SHA-256 of s.
func Digest(s string) string {
	return DigestBytes([]byte(s))
}

func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the first 16 hex chars of the SHA-256 of an encoded
// call key. Logs carry fingerprints instead of raw arguments.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

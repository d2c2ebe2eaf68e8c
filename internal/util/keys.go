package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxKeyLen is the longest key memcached accepts; redis and local stores share the limit
// so the same id maps to the same key on every provider.
const MaxKeyLen = 250

// StorageKey returns prefix+id when that is a valid cache key, otherwise a deterministic
// hashed form: prefix + "h:" + first 32 hex chars of sha256(id).
func StorageKey(prefix, id string) string {
	k := prefix + id
	if len(k) <= MaxKeyLen && safe(id) {
		return k
	}
	sum := sha256.Sum256([]byte(id))
	return prefix + "h:" + hex.EncodeToString(sum[:16])
}

// safe reports whether s has no whitespace, control or non-ASCII bytes.
func safe(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}

// Redact returns a short stable fingerprint of a session id or storage key for logs.
// Session ids are bearer secrets and never appear in log output.
func Redact(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

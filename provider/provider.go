// Package provider defines the cache abstraction the session store is built on.
//
// A Provider is a byte store with TTLs and optimistic concurrency: Gets returns a
// version token alongside the value, and CompareAndSwap writes only if the stored
// version still matches that token. Nothing else is assumed of the cache engine; in
// particular there is no server-side lock primitive.
//
// Implementations MUST be byte-for-byte transparent: Get/Gets must return exactly the
// []byte previously written for a key. Values returned to callers may be retained by
// them, so providers must not reuse those buffers.
package provider

import (
	"context"
	"time"
)

// Token is an opaque CAS version handle issued by Gets. Only the provider that issued
// it interprets it; callers treat it as a value to hand back to CompareAndSwap.
type Token any

// Provider is a minimal CAS-capable byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Gets is Get plus the current CAS token for the key.
	Gets(ctx context.Context, key string) ([]byte, Token, bool, error)

	// CompareAndSwap stores value with ttl iff the key still exists at the version
	// identified by token. A lost race (token stale, key deleted or expired) returns
	// (false, nil); err is reserved for transport/server failures.
	CompareAndSwap(ctx context.Context, key string, value []byte, token Token, ttl time.Duration) (swapped bool, err error)

	// Set stores value unconditionally with the given TTL, invalidating outstanding
	// tokens. ttl <= 0 means no expiry. Returns ok=false when the store rejected the
	// write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// CompareAndDelete removes key iff it still exists at the version identified by
	// token. A lost race returns (false, nil).
	CompareAndDelete(ctx context.Context, key string, token Token) (deleted bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

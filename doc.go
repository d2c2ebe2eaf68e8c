// Package sessioncas implements a distributed, lock-aware session store on top of a
// plain key-value cache that offers only get/set/delete and compare-and-swap.
//
// Each session is one cache entry holding a Record: lock flag, lock time, lock id,
// pending action, timeout and opaque content. Exclusive access is obtained by
// CAS-flipping the lock flag and incrementing the lock id; later writes must present
// that id, so a holder whose lock was force-released can never overwrite its successor.
// There is no server-side lock: a crashed holder's lock is recovered by the caller,
// which compares Result.LockAge to its own execution timeout and calls ForceRelease.
//
// Components:
//   - Provider: CAS-capable byte store with TTL (local, Redis, memcached).
//   - Codec[Record]: record envelope encoding. WireCodec by default; JSON, CBOR and
//     msgpack work through struct tags.
//   - Hooks / Logger: observability callbacks.
//
// Keys:
//
//	<prefix><id>              - e.g. sess:3f2a...
//	<prefix>h:<sha256[:16]>   - ids that are too long or not memcached-safe
//
// Request pattern:
//
//	res, _ := store.AcquireExclusive(ctx, id)       // Granted / Locked / NotFound
//	// ... handle request with res.Record.Content ...
//	_ = store.ReleaseAndWrite(ctx, id, res.LockID, newContent, 0, false)
//
// The session package wraps this pattern with polling, stale-lock recovery and typed
// content.
package sessioncas

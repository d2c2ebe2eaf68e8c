package sessioncas

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/sessioncas/codec"
	pr "github.com/unkn0wn-root/sessioncas/provider"
)

// Store is the lock-aware session store. Every method is one or a few blocking round
// trips to the cache; none keep in-process state between calls.
type Store interface {
	// AcquireExclusive locks the session for the caller.
	// Status: Granted, NotFound or Locked.
	AcquireExclusive(ctx context.Context, id string) (Result, error)

	// ReadShared reads without locking or mutating.
	// Status: Found, NotFound or Locked.
	ReadShared(ctx context.Context, id string) (Result, error)

	// ReleaseAndWrite stores content and unlocks. For a new session it writes a fresh
	// record unconditionally; otherwise it is a silent no-op unless lockID is current.
	// timeoutMinutes <= 0 keeps the stored timeout.
	ReleaseAndWrite(ctx context.Context, id string, lockID LockID, content []byte, timeoutMinutes int, isNewSession bool) error

	// ForceRelease unlocks without touching content. No-op on a stale lockID.
	ForceRelease(ctx context.Context, id string, lockID LockID) error

	// Remove deletes the session. No-op on a stale lockID.
	Remove(ctx context.Context, id string, lockID LockID) error

	// RefreshExpiration resets the TTL to the record's timeout. No-op when absent.
	RefreshExpiration(ctx context.Context, id string) error

	// SeedUninitialized writes an empty placeholder flagged ActionInitializeItem.
	SeedUninitialized(ctx context.Context, id string, timeoutMinutes int) error

	Close(context.Context) error
}

// Options tune the store. Only Provider is required; others have sensible defaults.
type Options struct {
	// Required
	Provider pr.Provider

	Codec                 c.Codec[Record]  // nil => WireCodec{}
	KeyPrefix             string           // "" => "sess:"
	DefaultTimeoutMinutes int              // used when a write carries no timeout; 0 => 20
	Retry                 RetryPolicy      // zero fields => DefaultRetryPolicy
	Logger                Logger           // if nil, NopLogger is used
	Hooks                 Hooks            // if nil, NopHooks is used
	Clock                 func() time.Time // lock timestamps and ages; nil => time.Now
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}

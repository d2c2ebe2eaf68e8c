package sessioncas

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// A CAS write lost a race and will be retried. attempt starts at 1.
	CASConflict(op, storageKey string, attempt int)

	// The retry policy ran out; the operation returns a *ContentionError.
	ContentionExhausted(op, storageKey string, attempts int)

	// AcquireExclusive or ReadShared found the session locked by another holder.
	LockBusy(storageKey string, age time.Duration)

	// A release/force-release/remove presented a lock id that is no longer current.
	// The call was a no-op.
	StaleLock(op, storageKey string, presented, current LockID)

	// A stored record was deleted on read.
	// reason ∈ {"corrupt"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// The provider returned a transport/server error.
	ProviderError(op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CASConflict(string, string, int)          {}
func (NopHooks) ContentionExhausted(string, string, int)  {}
func (NopHooks) LockBusy(string, time.Duration)           {}
func (NopHooks) StaleLock(string, string, LockID, LockID) {}
func (NopHooks) SelfHeal(string, string)                  {}
func (NopHooks) ProviderSetRejected(string)               {}
func (NopHooks) ProviderError(string, error)              {}

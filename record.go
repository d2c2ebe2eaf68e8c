package sessioncas

import "time"

// LockID identifies one holder of a session's exclusive lock. It starts at 0 and is
// incremented on every successful acquisition, so a holder that lost its lock can never
// present a current id again. Compared by equality only.
type LockID uint64

// Action is a pending action carried by a stored record.
type Action uint8

const (
	ActionNone Action = iota
	// ActionInitializeItem marks a placeholder seeded without content. The next
	// successful AcquireExclusive reports it and clears it.
	ActionInitializeItem
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionInitializeItem:
		return "initialize_item"
	default:
		return "unknown"
	}
}

// Record is the envelope stored under each session key.
//
// LockTime is advisory and only used to compute lock age. TimeoutMinutes is the idle
// expiration window and doubles as the cache TTL. Content is opaque and nil for a
// placeholder.
type Record struct {
	Locked         bool      `json:"locked" msgpack:"locked" cbor:"1,keyasint"`
	LockTime       time.Time `json:"lockTime" msgpack:"lockTime" cbor:"2,keyasint"`
	LockID         LockID    `json:"lockId" msgpack:"lockId" cbor:"3,keyasint"`
	Actions        Action    `json:"actions" msgpack:"actions" cbor:"4,keyasint"`
	TimeoutMinutes int       `json:"timeoutMinutes" msgpack:"timeoutMinutes" cbor:"5,keyasint"`
	Content        []byte    `json:"content" msgpack:"content" cbor:"6,keyasint"`
}

// NewRecord returns an unlocked record holding content.
func NewRecord(timeoutMinutes int, content []byte) *Record {
	return &Record{TimeoutMinutes: timeoutMinutes, Content: content}
}

// NewUninitialized returns a placeholder: no content, no lock, ActionInitializeItem.
// The store fills in TimeoutMinutes when seeding.
func NewUninitialized() *Record {
	return &Record{Actions: ActionInitializeItem}
}

func (r *Record) ttl() time.Duration {
	return time.Duration(r.TimeoutMinutes) * time.Minute
}

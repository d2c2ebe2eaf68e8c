package sessioncas

import "time"

// Status is the outcome of a read or acquire. None of these are errors.
type Status uint8

const (
	StatusNotFound Status = iota
	StatusLocked
	StatusGranted
	StatusFound
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusLocked:
		return "locked"
	case StatusGranted:
		return "granted"
	case StatusFound:
		return "found"
	default:
		return "unknown"
	}
}

// Result carries the outcome of AcquireExclusive or ReadShared.
//
//	Granted:  Record, Actions (pending before acquisition), LockID (now held)
//	Found:    Record, Actions
//	Locked:   LockID (current holder), LockAge
//	NotFound: nothing
type Result struct {
	Status  Status
	Record  *Record
	Actions Action
	LockID  LockID
	LockAge time.Duration
}

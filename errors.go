package sessioncas

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/sessioncas/internal/util"
	"github.com/unkn0wn-root/sessioncas/internal/wire"
)

var (
	// ErrUnavailable matches every error caused by the cache being unreachable or
	// failing, including exhausted CAS contention and unreadable record versions.
	ErrUnavailable = errors.New("sessioncas: store unavailable")
	// ErrContention matches a *ContentionError.
	ErrContention = errors.New("sessioncas: cas contention")
	ErrInvalidID  = errors.New("sessioncas: invalid session id")
	// ErrRecordVersion matches a stored record written in a format version this build
	// cannot decode. Such records are left in place; custom codecs may wrap it too.
	ErrRecordVersion = wire.ErrVersion
)

// StoreError is a provider failure during Op on session ID. Error() prints a
// fingerprint of ID, never the id itself.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sessioncas: %s session %s: %v", e.Op, util.Redact(e.ID), e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// ContentionError is returned when a CAS write kept losing races until the retry
// policy ran out.
type ContentionError struct {
	ID       string
	Op       string
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("sessioncas: %s session %s: cas contention after %d attempts", e.Op, util.Redact(e.ID), e.Attempts)
}

func (e *ContentionError) Is(target error) bool {
	return target == ErrContention || target == ErrUnavailable
}

package session

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/internal/util"
)

// Session is one request's view of a session. Exactly one of Save, Release or Abandon
// should be called when the request ends; later calls return ErrFinished.
// A Session is not safe for concurrent use.
type Session[V any] struct {
	Data V

	m        *Manager[V]
	id       string
	lockID   sessioncas.LockID
	timeout  int
	readOnly bool
	held     bool // exclusive lock held in the store
	isNew    bool
	unsaved  bool // no record exists yet; Save creates it
	done     bool
}

func (s *Session[V]) ID() string                { return s.id }
func (s *Session[V]) IsNew() bool               { return s.isNew }
func (s *Session[V]) ReadOnly() bool            { return s.readOnly }
func (s *Session[V]) LockID() sessioncas.LockID { return s.lockID }
func (s *Session[V]) TimeoutMinutes() int       { return s.timeout }

// SetTimeoutMinutes changes the idle timeout persisted by Save. Values <= 0 are ignored.
func (s *Session[V]) SetTimeoutMinutes(m int) {
	if m > 0 {
		s.timeout = m
	}
}

// Save persists Data and releases the lock. Read-only sessions only have their
// expiration refreshed.
func (s *Session[V]) Save(ctx context.Context) error {
	if s.done {
		return ErrFinished
	}
	if s.readOnly {
		s.done = true
		return s.m.store.RefreshExpiration(ctx, s.id)
	}
	content, err := s.m.codec.Encode(s.Data)
	if err != nil {
		s.m.giveBack(ctx, s)
		s.done = true
		return fmt.Errorf("session: encode %s: %w", util.Redact(s.id), err)
	}
	s.done = true
	if err := s.m.store.ReleaseAndWrite(ctx, s.id, s.lockID, content, s.timeout, s.unsaved); err != nil {
		return err
	}
	return s.m.store.RefreshExpiration(ctx, s.id)
}

// Release ends the request without writing Data: the lock is released and the
// expiration refreshed. A new session that was never saved leaves nothing behind.
func (s *Session[V]) Release(ctx context.Context) error {
	if s.done {
		return ErrFinished
	}
	s.done = true
	if s.held {
		if err := s.m.store.ForceRelease(ctx, s.id, s.lockID); err != nil {
			return err
		}
	}
	if s.unsaved {
		return nil
	}
	return s.m.store.RefreshExpiration(ctx, s.id)
}

// Abandon deletes the session. It requires the exclusive lock.
func (s *Session[V]) Abandon(ctx context.Context) error {
	if s.done {
		return ErrFinished
	}
	if s.readOnly {
		return ErrReadOnly
	}
	s.done = true
	if s.unsaved {
		return nil
	}
	return s.m.store.Remove(ctx, s.id, s.lockID)
}

// Package session is the request-side policy on top of sessioncas.Store: it waits for
// locked sessions, recovers locks whose holder exceeded the execution timeout, starts
// new sessions and decodes typed content.
//
//	m, _ := session.NewManager(session.Config[Cart]{Store: store})
//	s, err := m.Open(ctx, id, session.ModeExclusive)
//	if err != nil { ... }
//	s.Data.Items = append(s.Data.Items, item)
//	err = s.Save(ctx)
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/codec"
	"github.com/unkn0wn-root/sessioncas/internal/util"
)

const (
	DefaultExecutionTimeout = 110 * time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultMaxWait          = 2 * time.Minute
)

var (
	ErrLockTimeout = errors.New("session: timed out waiting for lock")
	ErrFinished    = errors.New("session: already saved, released or abandoned")
	ErrReadOnly    = errors.New("session: opened read-only")
)

// Mode selects how Open accesses the session.
type Mode uint8

const (
	ModeExclusive Mode = iota // lock for the duration of the request
	ModeReadOnly              // read without locking; changes are not persisted
)

// StartFunc runs when a request starts a brand-new session.
type StartFunc[V any] func(ctx context.Context, s *Session[V]) error

type Config[V any] struct {
	// Required
	Store sessioncas.Store

	Codec            codec.Codec[V]    // nil => codec.JSON[V]
	TimeoutMinutes   int               // idle timeout for new sessions; 0 => 20
	ExecutionTimeout time.Duration     // locks older than this are force-released; 0 => 110s
	PollInterval     time.Duration     // wait between attempts on a locked session; 0 => 500ms
	MaxWait          time.Duration     // give up with ErrLockTimeout after this; 0 => 2m
	OnStart          []StartFunc[V]    // run in order for new sessions
	Logger           sessioncas.Logger // nil => NopLogger
}

type Manager[V any] struct {
	store       sessioncas.Store
	codec       codec.Codec[V]
	timeout     int
	execTimeout time.Duration
	poll        time.Duration
	maxWait     time.Duration
	onStart     []StartFunc[V]
	log         sessioncas.Logger
}

func NewManager[V any](cfg Config[V]) (*Manager[V], error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	m := &Manager[V]{
		store:       cfg.Store,
		codec:       cfg.Codec,
		timeout:     cfg.TimeoutMinutes,
		execTimeout: cfg.ExecutionTimeout,
		poll:        cfg.PollInterval,
		maxWait:     cfg.MaxWait,
		onStart:     cfg.OnStart,
		log:         cfg.Logger,
	}
	if m.codec == nil {
		m.codec = codec.JSON[V]{}
	}
	if m.timeout <= 0 {
		m.timeout = sessioncas.DefaultTimeoutMinutes
	}
	if m.execTimeout <= 0 {
		m.execTimeout = DefaultExecutionTimeout
	}
	if m.poll <= 0 {
		m.poll = DefaultPollInterval
	}
	if m.maxWait <= 0 {
		m.maxWait = DefaultMaxWait
	}
	if m.log == nil {
		m.log = sessioncas.NopLogger{}
	}
	return m, nil
}

// NewID returns a fresh random session id.
func NewID() string { return uuid.NewString() }

// Regenerate issues a new id and seeds an uninitialized placeholder for it, so the
// next Open on that id starts a new session with the configured timeout.
func (m *Manager[V]) Regenerate(ctx context.Context) (string, error) {
	id := NewID()
	if err := m.store.SeedUninitialized(ctx, id, m.timeout); err != nil {
		return "", err
	}
	return id, nil
}

// Open loads the session for one request. While another request holds the lock it
// polls every PollInterval; a lock older than ExecutionTimeout is force-released.
// Absent sessions and seeded placeholders start a new session.
func (m *Manager[V]) Open(ctx context.Context, id string, mode Mode) (*Session[V], error) {
	deadline := time.Now().Add(m.maxWait)
	for {
		var (
			res sessioncas.Result
			err error
		)
		if mode == ModeExclusive {
			res, err = m.store.AcquireExclusive(ctx, id)
		} else {
			res, err = m.store.ReadShared(ctx, id)
		}
		if err != nil {
			return nil, err
		}

		switch res.Status {
		case sessioncas.StatusNotFound:
			s := m.newSession(id, mode, 0)
			s.unsaved = true
			if err := m.start(ctx, s); err != nil {
				return nil, err
			}
			return s, nil

		case sessioncas.StatusGranted, sessioncas.StatusFound:
			s := m.newSession(id, mode, res.LockID)
			s.timeout = res.Record.TimeoutMinutes
			if res.Actions == sessioncas.ActionInitializeItem {
				err = m.start(ctx, s)
			} else {
				err = m.decode(s, res.Record.Content)
			}
			if err != nil {
				m.giveBack(ctx, s)
				return nil, err
			}
			return s, nil

		case sessioncas.StatusLocked:
			if res.LockAge > m.execTimeout {
				m.log.Warn("force-releasing expired lock", sessioncas.Fields{
					"id":      util.Redact(id),
					"lock_id": uint64(res.LockID),
					"age":     res.LockAge.String(),
				})
				if err := m.store.ForceRelease(ctx, id, res.LockID); err != nil {
					return nil, err
				}
				continue
			}
			if !time.Now().Add(m.poll).Before(deadline) {
				return nil, ErrLockTimeout
			}
			if err := sleep(ctx, m.poll); err != nil {
				return nil, err
			}
		}
	}
}

func (m *Manager[V]) newSession(id string, mode Mode, lockID sessioncas.LockID) *Session[V] {
	return &Session[V]{
		m:        m,
		id:       id,
		readOnly: mode == ModeReadOnly,
		held:     mode == ModeExclusive && lockID != 0,
		lockID:   lockID,
		timeout:  m.timeout,
	}
}

// start marks s new and runs the OnStart callbacks.
func (m *Manager[V]) start(ctx context.Context, s *Session[V]) error {
	s.isNew = true
	if s.timeout <= 0 {
		s.timeout = m.timeout
	}
	for _, fn := range m.onStart {
		if err := fn(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[V]) decode(s *Session[V], content []byte) error {
	if len(content) == 0 {
		return nil
	}
	v, err := m.codec.Decode(content)
	if err != nil {
		return fmt.Errorf("session: decode %s: %w", util.Redact(s.id), err)
	}
	s.Data = v
	return nil
}

// giveBack releases a lock taken by Open when Open itself fails.
func (m *Manager[V]) giveBack(ctx context.Context, s *Session[V]) {
	if !s.held || s.done {
		return
	}
	if err := m.store.ForceRelease(ctx, s.id, s.lockID); err != nil {
		m.log.Error("release after failed open", sessioncas.Fields{"id": util.Redact(s.id), "err": err})
	}
	s.done = true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

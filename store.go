package sessioncas

import (
	"context"
	"errors"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/sessioncas/codec"
	"github.com/unkn0wn-root/sessioncas/internal/util"
	pr "github.com/unkn0wn-root/sessioncas/provider"
)

const (
	opAcquire = "acquire_exclusive"
	opRead    = "read_shared"
	opRelease = "release_and_write"
	opForce   = "force_release"
	opRemove  = "remove"
	opRefresh = "refresh_expiration"
	opSeed    = "seed_uninitialized"
)

type store struct {
	provider       pr.Provider
	codec          c.Codec[Record]
	prefix         string
	defaultTimeout int
	retry          RetryPolicy
	log            Logger
	hooks          Hooks
	now            func() time.Time
}

var _ Store = (*store)(nil)

func newStore(opts Options) (*store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("sessioncas: provider is required")
	}

	s := &store{
		provider: opts.Provider,
		retry:    opts.Retry.withDefaults(),
	}

	// defaults
	s.codec = coalesce[c.Codec[Record]](opts.Codec, WireCodec{})
	s.prefix = coalesce(opts.KeyPrefix, DefaultKeyPrefix)
	s.defaultTimeout = positive(opts.DefaultTimeoutMinutes, DefaultTimeoutMinutes)
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.now = opts.Clock
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

func (s *store) key(id string) (string, error) {
	if id == "" {
		return "", ErrInvalidID
	}
	return util.StorageKey(s.prefix, id), nil
}

func (s *store) timeout(minutes int) int {
	return positive(minutes, s.defaultTimeout)
}

func (s *store) ttl(r *Record) time.Duration {
	if r.TimeoutMinutes <= 0 {
		return time.Duration(s.defaultTimeout) * time.Minute
	}
	return r.ttl()
}

func (s *store) lockAge(r *Record) time.Duration {
	age := s.now().Sub(r.LockTime)
	if age < 0 {
		return 0 // clock skew between writers
	}
	return age
}

func (s *store) fail(op, id, key string, err error) error {
	s.hooks.ProviderError(op, err)
	s.log.Error("provider error", opFields(op, key, Fields{"err": err}))
	return &StoreError{Op: op, ID: id, Err: err}
}

// decode reports corrupt=true for a record the codec rejects. A record in a format
// version this build cannot read is a hard error instead: a newer writer may hold it.
func (s *store) decode(op, id, key string, raw []byte) (rec *Record, corrupt bool, err error) {
	r, err := s.codec.Decode(raw)
	if err == nil {
		return &r, false, nil
	}
	if errors.Is(err, ErrRecordVersion) {
		s.log.Error("unsupported record version", opFields(op, key, Fields{"err": err}))
		return nil, false, &StoreError{Op: op, ID: id, Err: err}
	}
	s.log.Warn("corrupt record", opFields(op, key, Fields{"err": err}))
	return nil, true, nil
}

// load reads and decodes the record at key without mutating it. A corrupt record is
// reported as absent and left for the locking paths to remove.
func (s *store) load(ctx context.Context, op, id, key string) (*Record, bool, error) {
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		return nil, false, s.fail(op, id, key, err)
	}
	if !ok {
		return nil, false, nil
	}
	rec, corrupt, err := s.decode(op, id, key, raw)
	if err != nil || corrupt {
		return nil, false, err
	}
	return rec, true, nil
}

// loadCAS is load plus the CAS token for the entry. A corrupt record is deleted only
// if it is still the version that was read; a concurrent rewrite is read again under
// the retry policy.
func (s *store) loadCAS(ctx context.Context, op, id, key string) (*Record, pr.Token, bool, error) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		raw, tok, ok, err := s.provider.Gets(ctx, key)
		if err != nil {
			return nil, nil, false, s.fail(op, id, key, err)
		}
		if !ok {
			return nil, nil, false, nil
		}
		rec, corrupt, err := s.decode(op, id, key, raw)
		if err != nil {
			return nil, nil, false, err
		}
		if !corrupt {
			return rec, tok, true, nil
		}
		deleted, err := s.provider.CompareAndDelete(ctx, key, tok)
		if err != nil {
			return nil, nil, false, s.fail(op, id, key, err)
		}
		if deleted {
			s.hooks.SelfHeal(key, "corrupt")
			s.log.Warn("corrupt record deleted", opFields(op, key, nil))
			return nil, nil, false, nil
		}
		if err := s.conflict(ctx, op, id, key, attempt, start); err != nil {
			return nil, nil, false, err
		}
	}
}

func (s *store) encode(r *Record) ([]byte, error) {
	b, err := s.codec.Encode(*r)
	if err != nil {
		return nil, fmt.Errorf("sessioncas: encode record: %w", err)
	}
	return b, nil
}

func (s *store) swap(ctx context.Context, op, id, key string, r *Record, tok pr.Token) (bool, error) {
	b, err := s.encode(r)
	if err != nil {
		return false, err
	}
	swapped, err := s.provider.CompareAndSwap(ctx, key, b, tok, s.ttl(r))
	if err != nil {
		return false, s.fail(op, id, key, err)
	}
	return swapped, nil
}

func (s *store) put(ctx context.Context, op, id, key string, r *Record) error {
	b, err := s.encode(r)
	if err != nil {
		return err
	}
	ok, err := s.provider.Set(ctx, key, b, s.ttl(r))
	if err != nil {
		return s.fail(op, id, key, err)
	}
	if !ok {
		s.hooks.ProviderSetRejected(key)
		s.log.Debug("write rejected by provider (pressure)", opFields(op, key, nil))
	}
	return nil
}

// conflict records a lost CAS race and waits before the next attempt. It returns a
// *ContentionError once the retry policy is exhausted, or ctx's error if cancelled.
func (s *store) conflict(ctx context.Context, op, id, key string, attempt int, start time.Time) error {
	s.hooks.CASConflict(op, key, attempt)
	s.log.Debug("cas conflict", opFields(op, key, Fields{"attempt": attempt}))
	if s.retry.exhausted(attempt, time.Since(start)) {
		s.hooks.ContentionExhausted(op, key, attempt)
		s.log.Warn("cas contention exhausted", opFields(op, key, Fields{"attempts": attempt}))
		return &ContentionError{ID: id, Op: op, Attempts: attempt}
	}
	return sleepCtx(ctx, s.retry.delay(attempt))
}

func (s *store) stale(op, key string, presented, current LockID) {
	s.hooks.StaleLock(op, key, presented, current)
	s.log.Debug("stale lock id, skipped", opFields(op, key, Fields{
		"presented": uint64(presented),
		"current":   uint64(current),
	}))
}

func (s *store) AcquireExclusive(ctx context.Context, id string) (Result, error) {
	key, err := s.key(id)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	for attempt := 1; ; attempt++ {
		rec, tok, ok, err := s.loadCAS(ctx, opAcquire, id, key)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{Status: StatusNotFound}, nil
		}
		if rec.Locked {
			age := s.lockAge(rec)
			s.hooks.LockBusy(key, age)
			return Result{Status: StatusLocked, LockID: rec.LockID, LockAge: age}, nil
		}

		pending := rec.Actions
		rec.Locked = true
		rec.LockTime = s.now()
		rec.LockID++
		rec.Actions = ActionNone

		swapped, err := s.swap(ctx, opAcquire, id, key, rec, tok)
		if err != nil {
			return Result{}, err
		}
		if swapped {
			return Result{Status: StatusGranted, Record: rec, Actions: pending, LockID: rec.LockID}, nil
		}
		if err := s.conflict(ctx, opAcquire, id, key, attempt, start); err != nil {
			return Result{}, err
		}
	}
}

func (s *store) ReadShared(ctx context.Context, id string) (Result, error) {
	key, err := s.key(id)
	if err != nil {
		return Result{}, err
	}
	rec, ok, err := s.load(ctx, opRead, id, key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Status: StatusNotFound}, nil
	}
	if rec.Locked {
		age := s.lockAge(rec)
		s.hooks.LockBusy(key, age)
		return Result{Status: StatusLocked, LockID: rec.LockID, LockAge: age}, nil
	}
	return Result{Status: StatusFound, Record: rec, Actions: rec.Actions}, nil
}

// mutate applies fn to the current record and writes it back with CAS, retrying lost
// races under the retry policy. fn returns false to leave the record untouched.
// An absent record is a no-op.
func (s *store) mutate(ctx context.Context, op, id string, fn func(key string, r *Record) bool) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	start := time.Now()
	for attempt := 1; ; attempt++ {
		rec, tok, ok, err := s.loadCAS(ctx, op, id, key)
		if err != nil || !ok {
			return err
		}
		if !fn(key, rec) {
			return nil
		}
		swapped, err := s.swap(ctx, op, id, key, rec, tok)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		if err := s.conflict(ctx, op, id, key, attempt, start); err != nil {
			return err
		}
	}
}

func (s *store) ReleaseAndWrite(ctx context.Context, id string, lockID LockID, content []byte, timeoutMinutes int, isNewSession bool) error {
	if isNewSession {
		key, err := s.key(id)
		if err != nil {
			return err
		}
		return s.put(ctx, opRelease, id, key, NewRecord(s.timeout(timeoutMinutes), content))
	}
	return s.mutate(ctx, opRelease, id, func(key string, r *Record) bool {
		if r.LockID != lockID {
			s.stale(opRelease, key, lockID, r.LockID)
			return false
		}
		r.Locked = false
		r.Content = content
		if timeoutMinutes > 0 {
			r.TimeoutMinutes = timeoutMinutes
		}
		return true
	})
}

func (s *store) ForceRelease(ctx context.Context, id string, lockID LockID) error {
	return s.mutate(ctx, opForce, id, func(key string, r *Record) bool {
		if r.LockID != lockID {
			s.stale(opForce, key, lockID, r.LockID)
			return false
		}
		if !r.Locked {
			return false // already released
		}
		r.Locked = false
		return true
	})
}

func (s *store) RefreshExpiration(ctx context.Context, id string) error {
	return s.mutate(ctx, opRefresh, id, func(string, *Record) bool { return true })
}

func (s *store) Remove(ctx context.Context, id string, lockID LockID) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	rec, ok, err := s.load(ctx, opRemove, id, key)
	if err != nil || !ok {
		return err
	}
	if rec.LockID != lockID {
		s.stale(opRemove, key, lockID, rec.LockID)
		return nil
	}
	if err := s.provider.Del(ctx, key); err != nil {
		return s.fail(opRemove, id, key, err)
	}
	return nil
}

func (s *store) SeedUninitialized(ctx context.Context, id string, timeoutMinutes int) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	rec := NewUninitialized()
	rec.TimeoutMinutes = s.timeout(timeoutMinutes)
	return s.put(ctx, opSeed, id, key, rec)
}

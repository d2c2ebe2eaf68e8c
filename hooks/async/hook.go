// Package asynchook moves hook delivery off the store's request path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    CASConflictEvery: 100, // sample: ~every 100th conflict
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := sessioncas.New(sessioncas.Options{
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped, not queued, when the buffer is full. Dropped() reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/sessioncas"
)

type Hooks struct {
	inner   sessioncas.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against concurrent try/Close
	closed  bool
	dropped atomic.Uint64
}

var _ sessioncas.Hooks = (*Hooks)(nil)

func New(inner sessioncas.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CASConflict(op, k string, n int) { h.try(func() { h.inner.CASConflict(op, k, n) }) }
func (h *Hooks) SelfHeal(k, r string)            { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)    { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) ProviderError(op string, err error) {
	h.try(func() { h.inner.ProviderError(op, err) })
}
func (h *Hooks) ContentionExhausted(op, k string, n int) {
	h.try(func() { h.inner.ContentionExhausted(op, k, n) })
}
func (h *Hooks) LockBusy(k string, age time.Duration) {
	h.try(func() { h.inner.LockBusy(k, age) })
}
func (h *Hooks) StaleLock(op, k string, presented, current sessioncas.LockID) {
	h.try(func() { h.inner.StaleLock(op, k, presented, current) })
}

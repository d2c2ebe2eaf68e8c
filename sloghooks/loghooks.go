// Package sloghooks reports store hook events through log/slog, with sampling for the
// noisy ones and storage keys redacted (session ids are bearer secrets).
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CASConflictEvery uint64
	LockBusyEvery    uint64
	StaleLockEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	busyCtr     atomic.Uint64
	staleCtr    atomic.Uint64
}

var _ sessioncas.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Redact(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CASConflict(op, storageKey string, attempt int) {
	if h.l == nil || !sample(h.opts.CASConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("sessioncas.cas_conflict",
		"op", op,
		"key", h.redact(storageKey),
		"attempt", attempt)
}

func (h *Hooks) ContentionExhausted(op, storageKey string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessioncas.contention_exhausted",
		"op", op,
		"key", h.redact(storageKey),
		"attempts", attempts)
}

func (h *Hooks) LockBusy(storageKey string, age time.Duration) {
	if h.l == nil || !sample(h.opts.LockBusyEvery, &h.busyCtr) {
		return
	}
	h.l.Debug("sessioncas.lock_busy",
		"key", h.redact(storageKey),
		"age", age)
}

func (h *Hooks) StaleLock(op, storageKey string, presented, current sessioncas.LockID) {
	if h.l == nil || !sample(h.opts.StaleLockEvery, &h.staleCtr) {
		return
	}
	h.l.Info("sessioncas.stale_lock",
		"op", op,
		"key", h.redact(storageKey),
		"presented", uint64(presented),
		"current", uint64(current))
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessioncas.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessioncas.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) ProviderError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("sessioncas.provider_error",
		"op", op,
		"err", err)
}

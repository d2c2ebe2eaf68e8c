package sessioncas

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how long a CAS write keeps retrying after losing races.
// Delays use full-jitter exponential backoff: attempt n sleeps a uniform random
// duration in [0, min(MaxDelay, BaseDelay<<n)]. Zero fields take defaults.
type RetryPolicy struct {
	MaxAttempts int           // 0 => 32
	BaseDelay   time.Duration // 0 => 2ms
	MaxDelay    time.Duration // 0 => 100ms
	MaxElapsed  time.Duration // 0 => 5s; wall time across all attempts
}

// DefaultRetryPolicy returns the policy used when Options.Retry is zero.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{}.withDefaults()
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	p.MaxAttempts = positive(p.MaxAttempts, defaultMaxAttempts)
	p.BaseDelay = positive(p.BaseDelay, defaultBaseDelay)
	p.MaxDelay = positive(p.MaxDelay, defaultMaxDelay)
	p.MaxElapsed = positive(p.MaxElapsed, defaultMaxElapsed)
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// exhausted reports whether attempt (1-based, already failed) was the last one allowed.
func (p RetryPolicy) exhausted(attempt int, elapsed time.Duration) bool {
	return attempt >= p.MaxAttempts || elapsed >= p.MaxElapsed
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if c := p.BaseDelay << shift; c > 0 && c < d {
			d = c
		}
	}
	return rand.N(d + 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

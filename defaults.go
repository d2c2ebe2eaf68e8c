package sessioncas

import "time"

const (
	DefaultKeyPrefix      = "sess:"
	DefaultTimeoutMinutes = 20

	defaultMaxAttempts = 32
	defaultBaseDelay   = 2 * time.Millisecond
	defaultMaxDelay    = 100 * time.Millisecond
	defaultMaxElapsed  = 5 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// positive returns def for v <= 0.
func positive[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Package ristretto adapts a dgraph-io/ristretto cache as a local.Backend.
//
// Ristretto applies writes asynchronously; Set waits for the write buffer to drain so
// a CAS that follows sees the value it just wrote. Admission is still probabilistic:
// under pressure a new session may be refused (Set returns false) or evicted early,
// both of which the session store observes as an absent record.
package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/sessioncas/provider/local"
)

type Backend struct {
	c *rc.Cache
}

var _ local.Backend = (*Backend)(nil)

type Config struct {
	NumCounters int64 // ~10x the expected number of live sessions
	MaxCost     int64 // total bytes when cost is the value size
	BufferItems int64 // 64 is the ristretto recommendation
	Metrics     bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(key string) ([]byte, bool) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false
	}
	raw, _ := v.([]byte)
	if raw == nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(key)
		return nil, false
	}
	return raw, true
}

func (b *Backend) Set(key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		ttl = 0
	}
	ok := b.c.SetWithTTL(key, value, int64(len(value)), ttl)
	b.c.Wait()
	return ok
}

func (b *Backend) Del(key string) {
	b.c.Del(key)
}

func (b *Backend) Close() error {
	b.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics is set).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }

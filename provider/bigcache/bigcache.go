// Package bigcache adapts allegro/bigcache as a local.Backend.
//
// BigCache has a single global LifeWindow and no per-entry TTL; per-session expiry is
// enforced by the local provider's envelope. Set LifeWindow at least as long as the
// longest session timeout or sessions will vanish early.
package bigcache

import (
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/sessioncas/provider/local"
)

type Backend struct {
	c *bc.BigCache
}

var _ local.Backend = (*Backend)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 24h
	CleanWindow        time.Duration
	Shards             int // power of two; 0 => bigcache default
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Backend, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(key string) ([]byte, bool) {
	v, err := b.c.Get(key)
	if err != nil {
		// ErrEntryNotFound or a corrupted shard entry; both are misses here
		return nil, false
	}
	return v, true
}

// Set ignores ttl: bigcache only knows its global LifeWindow.
func (b *Backend) Set(key string, value []byte, _ time.Duration) bool {
	return b.c.Set(key, value) == nil
}

func (b *Backend) Del(key string) {
	_ = b.c.Delete(key) // ErrEntryNotFound is fine
}

func (b *Backend) Close() error {
	return b.c.Close()
}

// Len reports the number of stored entries, including ones the local provider
// considers expired but has not purged yet.
func (b *Backend) Len() int { return b.c.Len() }

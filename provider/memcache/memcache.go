// Package memcache implements provider.Provider on memcached via bradfitz/gomemcache.
//
// memcached has native gets/cas, so the CAS token is the *memcache.Item returned by
// Gets (it carries the server's cas unique). TTLs are sent in whole seconds; anything
// over 30 days is sent as an absolute unix time, as the memcached protocol requires.
package memcache

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	pr "github.com/unkn0wn-root/sessioncas/provider"
)

var ErrNilClient = errors.New("memcache provider: nil client")

// relativeLimit is the longest TTL memcached treats as relative seconds.
const relativeLimit = 30 * 24 * time.Hour

// Client is the subset of *memcache.Client the provider uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
	Delete(key string) error
}

var _ Client = (*memcache.Client)(nil)

type Memcache struct {
	c           Client
	closeClient bool
	now         func() time.Time
}

var _ pr.Provider = (*Memcache)(nil)

type Config struct {
	Client      Client
	CloseClient bool             // set true only if this provider exclusively owns the client
	Clock       func() time.Time // used for absolute expirations; nil => time.Now
}

func New(cfg Config) (*Memcache, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Memcache{c: cfg.Client, closeClient: cfg.CloseClient, now: now}, nil
}

// NewServers dials the given servers with a per-operation timeout (0 => gomemcache default).
func NewServers(timeout time.Duration, servers ...string) (*Memcache, error) {
	if len(servers) == 0 {
		return nil, errors.New("memcache provider: no servers")
	}
	c := memcache.New(servers...)
	if timeout > 0 {
		c.Timeout = timeout
	}
	return New(Config{Client: c, CloseClient: true})
}

// gomemcache has no context support; ctx is accepted for the interface only.

func (p *Memcache) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Memcache) Gets(_ context.Context, key string) ([]byte, pr.Token, bool, error) {
	it, err := p.c.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return it.Value, it, true, nil
}

func (p *Memcache) CompareAndSwap(_ context.Context, key string, value []byte, token pr.Token, ttl time.Duration) (bool, error) {
	it, ok := token.(*memcache.Item)
	if !ok || it == nil || it.Key != key {
		return false, nil
	}
	// The token item is ours (issued by Gets); reuse it so its cas unique goes back to the server.
	it.Value = value
	it.Expiration = p.expiration(ttl)
	err := p.c.CompareAndSwap(it)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrCASConflict),
		errors.Is(err, memcache.ErrNotStored),
		errors.Is(err, memcache.ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}

// CompareAndDelete expires the item immediately with a cas write; memcached has no
// conditional delete.
func (p *Memcache) CompareAndDelete(_ context.Context, key string, token pr.Token) (bool, error) {
	it, ok := token.(*memcache.Item)
	if !ok || it == nil || it.Key != key {
		return false, nil
	}
	it.Value = nil
	it.Expiration = -1
	err := p.c.CompareAndSwap(it)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrCASConflict),
		errors.Is(err, memcache.ErrNotStored),
		errors.Is(err, memcache.ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}

func (p *Memcache) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := p.c.Set(&memcache.Item{Key: key, Value: value, Expiration: p.expiration(ttl)})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Memcache) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Close closes the client only when this provider owns it and the client supports it.
func (p *Memcache) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	if c, ok := p.c.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (p *Memcache) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > relativeLimit {
		// the protocol field is 32 bits; later expirations are clamped to 2038-01-19
		at := p.now().Add(ttl).Unix()
		if at > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(at)
	}
	secs := int32((ttl + time.Second - 1) / time.Second) // round up; 0 would mean "never"
	return secs
}

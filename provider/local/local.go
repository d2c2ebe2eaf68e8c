// Package local is an in-process CAS cache for single-node deployments and tests.
//
// Values are wrapped in a small envelope carrying a version and an absolute expiry:
//
//	version(u64 be) | expiresAt(i64 be, unix ns, 0 = none) | value
//
// Versions come from a per-provider monotonic counter, so a key that is deleted and
// recreated never reissues a token an old reader might still hold.
package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	pr "github.com/unkn0wn-root/sessioncas/provider"
)

const (
	envHdr         = 8 + 8
	defaultStripes = 64
)

var ErrClosed = errors.New("local provider: closed")

type token uint64

// Config tunes a local Provider. The zero value is usable.
type Config struct {
	Backend       Backend          // nil => NewMapBackend()
	Clock         func() time.Time // nil => time.Now
	Stripes       int              // lock stripes; 0 => 64, rounded up to a power of two
	SweepInterval time.Duration    // >0 purges expired entries from Ranger backends
}

type Provider struct {
	b    Backend
	now  func() time.Time
	seq  atomic.Uint64
	mask uint64
	mu   []sync.Mutex

	closed    atomic.Bool
	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) *Provider {
	n := cfg.Stripes
	if n <= 0 {
		n = defaultStripes
	}
	size := 1
	for size < n {
		size <<= 1
	}

	p := &Provider{
		b:    cfg.Backend,
		now:  cfg.Clock,
		mask: uint64(size - 1),
		mu:   make([]sync.Mutex, size),
	}
	if p.b == nil {
		p.b = NewMapBackend()
	}
	if p.now == nil {
		p.now = time.Now
	}

	if r, ok := p.b.(Ranger); ok && cfg.SweepInterval > 0 {
		p.ticker = time.NewTicker(cfg.SweepInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.sweep(r)
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

func (p *Provider) lock(key string) *sync.Mutex {
	return &p.mu[xxhash.Sum64String(key)&p.mask]
}

// load returns the live entry for key. Expired entries are deleted. Caller holds the stripe.
func (p *Provider) load(key string) (ver uint64, val []byte, ok bool) {
	env, ok := p.b.Get(key)
	if !ok {
		return 0, nil, false
	}
	if len(env) < envHdr {
		p.b.Del(key) // foreign or truncated entry
		return 0, nil, false
	}
	ver = binary.BigEndian.Uint64(env[:8])
	exp := int64(binary.BigEndian.Uint64(env[8:16]))
	if exp != 0 && p.now().UnixNano() >= exp {
		p.b.Del(key)
		return 0, nil, false
	}
	return ver, env[envHdr:], true
}

// store writes value under a fresh version. Caller holds the stripe.
func (p *Provider) store(key string, value []byte, ttl time.Duration) bool {
	var exp int64
	if ttl > 0 {
		exp = p.now().Add(ttl).UnixNano()
	}
	env := make([]byte, envHdr+len(value))
	binary.BigEndian.PutUint64(env[:8], p.seq.Add(1))
	binary.BigEndian.PutUint64(env[8:16], uint64(exp))
	copy(env[envHdr:], value)
	return p.b.Set(key, env, ttl)
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, ErrClosed
	}
	m := p.lock(key)
	m.Lock()
	_, v, ok := p.load(key)
	m.Unlock()
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (p *Provider) Gets(_ context.Context, key string) ([]byte, pr.Token, bool, error) {
	if p.closed.Load() {
		return nil, nil, false, ErrClosed
	}
	m := p.lock(key)
	m.Lock()
	ver, v, ok := p.load(key)
	m.Unlock()
	if !ok {
		return nil, nil, false, nil
	}
	return bytes.Clone(v), token(ver), true, nil
}

func (p *Provider) CompareAndSwap(_ context.Context, key string, value []byte, tok pr.Token, ttl time.Duration) (bool, error) {
	if p.closed.Load() {
		return false, ErrClosed
	}
	want, ok := tok.(token)
	if !ok {
		return false, nil // foreign token can never match
	}
	m := p.lock(key)
	m.Lock()
	defer m.Unlock()
	ver, _, ok := p.load(key)
	if !ok || ver != uint64(want) {
		return false, nil
	}
	return p.store(key, value, ttl), nil
}

func (p *Provider) CompareAndDelete(_ context.Context, key string, tok pr.Token) (bool, error) {
	if p.closed.Load() {
		return false, ErrClosed
	}
	want, ok := tok.(token)
	if !ok {
		return false, nil
	}
	m := p.lock(key)
	m.Lock()
	defer m.Unlock()
	ver, _, ok := p.load(key)
	if !ok || ver != uint64(want) {
		return false, nil
	}
	p.b.Del(key)
	return true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if p.closed.Load() {
		return false, ErrClosed
	}
	m := p.lock(key)
	m.Lock()
	ok := p.store(key, value, ttl)
	m.Unlock()
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	m := p.lock(key)
	m.Lock()
	p.b.Del(key)
	m.Unlock()
	return nil
}

// Sweep purges expired entries now. It is a no-op for backends that cannot be ranged.
func (p *Provider) Sweep() {
	if r, ok := p.b.(Ranger); ok {
		p.sweep(r)
	}
}

func (p *Provider) sweep(r Ranger) {
	now := p.now().UnixNano()
	r.Range(func(key string, env []byte) bool {
		if len(env) < envHdr {
			return true
		}
		exp := int64(binary.BigEndian.Uint64(env[8:16]))
		if exp == 0 || now < exp {
			return true
		}
		m := p.lock(key)
		m.Lock()
		_, _, _ = p.load(key) // re-check under the stripe; deletes if still expired
		m.Unlock()
		return true
	})
}

func (p *Provider) Close(_ context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.stopCh != nil {
			close(p.stopCh)
			if p.ticker != nil {
				p.ticker.Stop()
			}
			p.wg.Wait()
		}
		err = p.b.Close()
	})
	return err
}

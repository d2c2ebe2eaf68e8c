package memcache

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// fakeClient emulates memcached gets/cas. It cannot see the unexported cas unique,
// so it tracks which *Item it handed out for which version.
type fakeClient struct {
	mu      sync.Mutex
	vals    map[string][]byte
	exps    map[string]int32
	vers    map[string]uint64
	issued  map[*memcache.Item]uint64
	seq     uint64
	closed  bool
	failErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		vals:   map[string][]byte{},
		exps:   map[string]int32{},
		vers:   map[string]uint64{},
		issued: map[*memcache.Item]uint64{},
	}
}

func (f *fakeClient) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	v, ok := f.vals[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	it := &memcache.Item{Key: key, Value: bytes.Clone(v), Expiration: f.exps[key]}
	f.issued[it] = f.vers[key]
	return it, nil
}

func (f *fakeClient) Set(it *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(it)
	return nil
}

func (f *fakeClient) put(it *memcache.Item) {
	if it.Expiration < 0 { // expired on write
		delete(f.vals, it.Key)
		delete(f.exps, it.Key)
		delete(f.vers, it.Key)
		return
	}
	f.seq++
	f.vals[it.Key] = bytes.Clone(it.Value)
	f.exps[it.Key] = it.Expiration
	f.vers[it.Key] = f.seq
}

func (f *fakeClient) CompareAndSwap(it *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.vers[it.Key]
	if !ok {
		return memcache.ErrNotStored
	}
	if ver, ok := f.issued[it]; !ok || ver != cur {
		return memcache.ErrCASConflict
	}
	f.put(it)
	return nil
}

func (f *fakeClient) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vals[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.vals, key)
	delete(f.exps, key)
	delete(f.vers, key)
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
	if _, err := NewServers(0); err == nil {
		t.Fatalf("expected error without servers")
	}
}

func TestCASFlow(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Client: newFakeClient()})

	if _, _, ok, err := p.Gets(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v1"), time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	v, tok, ok, err := p.Gets(ctx, "k")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Gets: v=%q ok=%v err=%v", v, ok, err)
	}
	_, tok2, _, _ := p.Gets(ctx, "k")

	if swapped, err := p.CompareAndSwap(ctx, "k", []byte("v2"), tok, time.Minute); err != nil || !swapped {
		t.Fatalf("first CAS: swapped=%v err=%v", swapped, err)
	}
	if swapped, err := p.CompareAndSwap(ctx, "k", []byte("v3"), tok2, time.Minute); err != nil || swapped {
		t.Fatalf("stale CAS: swapped=%v err=%v", swapped, err)
	}
	if v, ok, _ := p.Get(ctx, "k"); !ok || string(v) != "v2" {
		t.Fatalf("expected v2, got %q ok=%v", v, ok)
	}
}

func TestCASOnDeletedKey(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Client: newFakeClient()})

	_, _ = p.Set(ctx, "k", []byte("a"), 0)
	_, tok, _, _ := p.Gets(ctx, "k")
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del of a missing key should be nil, got %v", err)
	}
	if swapped, err := p.CompareAndSwap(ctx, "k", []byte("b"), tok, 0); err != nil || swapped {
		t.Fatalf("CAS on deleted key: swapped=%v err=%v", swapped, err)
	}
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Client: newFakeClient()})

	_, _ = p.Set(ctx, "k", []byte("a"), time.Minute)
	_, stale, _, _ := p.Gets(ctx, "k")
	_, _ = p.Set(ctx, "k", []byte("b"), time.Minute)
	if deleted, err := p.CompareAndDelete(ctx, "k", stale); err != nil || deleted {
		t.Fatalf("stale token: deleted=%v err=%v", deleted, err)
	}
	if v, ok, _ := p.Get(ctx, "k"); !ok || string(v) != "b" {
		t.Fatalf("rewritten value lost: %q ok=%v", v, ok)
	}

	_, tok, _, _ := p.Gets(ctx, "k")
	if deleted, err := p.CompareAndDelete(ctx, "k", tok); err != nil || !deleted {
		t.Fatalf("current token: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("key survived CompareAndDelete")
	}
	if deleted, _ := p.CompareAndDelete(ctx, "k", "foreign"); deleted {
		t.Fatalf("foreign token deleted")
	}
}

func TestForeignOrMismatchedToken(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Client: newFakeClient()})
	_, _ = p.Set(ctx, "a", []byte("x"), 0)
	_, _ = p.Set(ctx, "b", []byte("y"), 0)
	_, tokA, _, _ := p.Gets(ctx, "a")

	if swapped, _ := p.CompareAndSwap(ctx, "a", []byte("z"), uint64(1), 0); swapped {
		t.Fatalf("foreign token matched")
	}
	if swapped, _ := p.CompareAndSwap(ctx, "b", []byte("z"), tokA, 0); swapped {
		t.Fatalf("token for another key matched")
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.failErr = errors.New("dial tcp: refused")
	p, _ := New(Config{Client: fc})
	if _, _, err := p.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error from Get")
	}
	if _, _, _, err := p.Gets(ctx, "k"); err == nil {
		t.Fatalf("expected error from Gets")
	}
}

func TestExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p, _ := New(Config{Client: newFakeClient(), Clock: func() time.Time { return now }})

	cases := map[time.Duration]int32{
		0:                       0,
		-time.Second:            0,
		time.Millisecond:        1,
		1500 * time.Millisecond: 2,
		20 * time.Minute:        1200,
		relativeLimit:           int32(relativeLimit / time.Second),
	}
	for in, want := range cases {
		if got := p.expiration(in); got != want {
			t.Fatalf("expiration(%v)=%d want %d", in, got, want)
		}
	}
	long := relativeLimit + time.Hour
	if got, want := p.expiration(long), int32(now.Add(long).Unix()); got != want {
		t.Fatalf("long ttl: got %d want absolute %d", got, want)
	}
	if got := p.expiration(200 * 365 * 24 * time.Hour); got != math.MaxInt32 {
		t.Fatalf("post-2038 expiration not clamped: %d", got)
	}
}

func TestCloseOnlyWhenOwned(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	p, _ := New(Config{Client: fc})
	_ = p.Close(ctx)
	if fc.closed {
		t.Fatalf("borrowed client was closed")
	}
	p, _ = New(Config{Client: fc, CloseClient: true})
	_ = p.Close(ctx)
	if !fc.closed {
		t.Fatalf("owned client was not closed")
	}
}

func TestMemcachedIntegration(t *testing.T) {
	addr := os.Getenv("SESSIONCAS_MEMCACHE_ADDR")
	if addr == "" {
		t.Skip("SESSIONCAS_MEMCACHE_ADDR not set")
	}
	ctx := context.Background()
	p, err := NewServers(time.Second, addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })
	key := "sessioncas:test:" + t.Name()
	t.Cleanup(func() { _ = p.Del(ctx, key) })

	if _, err := p.Set(ctx, key, []byte("v1"), time.Minute); err != nil {
		t.Skipf("memcached not reachable at %s: %v", addr, err)
	}
	_, tok, ok, err := p.Gets(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Gets: ok=%v err=%v", ok, err)
	}
	_, tok2, _, _ := p.Gets(ctx, key)
	if swapped, err := p.CompareAndSwap(ctx, key, []byte("v2"), tok, time.Minute); err != nil || !swapped {
		t.Fatalf("first CAS: swapped=%v err=%v", swapped, err)
	}
	if swapped, err := p.CompareAndSwap(ctx, key, []byte("v3"), tok2, time.Minute); err != nil || swapped {
		t.Fatalf("stale CAS: swapped=%v err=%v", swapped, err)
	}
}

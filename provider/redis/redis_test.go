package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// newTestProvider connects to SESSIONCAS_REDIS_ADDR when set, otherwise to an
// in-process miniredis so the Lua scripts run on every build.
func newTestProvider(t *testing.T) (*Redis, goredis.UniversalClient) {
	t.Helper()
	addr := os.Getenv("SESSIONCAS_REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not reachable at %s: %v", addr, err)
	}
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, rdb
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestTTLMillis(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       0,
		-time.Second:            0,
		time.Microsecond:        1,
		1500 * time.Microsecond: 1,
		20 * time.Minute:        1_200_000,
	}
	for in, want := range cases {
		if got := ttlMillis(in); got != want {
			t.Fatalf("ttlMillis(%v)=%d want %d", in, got, want)
		}
	}
}

func TestForeignTokenNeverMatches(t *testing.T) {
	p := &Redis{}
	if swapped, err := p.CompareAndSwap(context.Background(), "k", nil, 42, 0); err != nil || swapped {
		t.Fatalf("foreign token: swapped=%v err=%v", swapped, err)
	}
}

func TestRedisCASFlow(t *testing.T) {
	ctx := context.Background()
	p, rdb := newTestProvider(t)
	key := "sessioncas:test:" + t.Name()
	t.Cleanup(func() { rdb.Del(ctx, key) })

	if _, _, ok, err := p.Gets(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, key, []byte("v1"), time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	v, tok, ok, err := p.Gets(ctx, key)
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Gets: v=%q ok=%v err=%v", v, ok, err)
	}
	if swapped, err := p.CompareAndSwap(ctx, key, []byte("v2"), tok, time.Minute); err != nil || !swapped {
		t.Fatalf("first CAS: swapped=%v err=%v", swapped, err)
	}
	if swapped, err := p.CompareAndSwap(ctx, key, []byte("v3"), tok, time.Minute); err != nil || swapped {
		t.Fatalf("stale CAS: swapped=%v err=%v", swapped, err)
	}
	if v, ok, _ := p.Get(ctx, key); !ok || string(v) != "v2" {
		t.Fatalf("expected v2, got %q ok=%v", v, ok)
	}
	if ttl := rdb.PTTL(ctx, key).Val(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// delete + recreate must not revive the old token
	if err := p.Del(ctx, key); err != nil {
		t.Fatal(err)
	}
	_, _ = p.Set(ctx, key, []byte("v1"), time.Minute)
	if swapped, _ := p.CompareAndSwap(ctx, key, []byte("x"), tok, time.Minute); swapped {
		t.Fatalf("token from a previous incarnation matched")
	}
}

func TestRedisCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	p, rdb := newTestProvider(t)
	key := "sessioncas:test:" + t.Name()
	t.Cleanup(func() { rdb.Del(ctx, key) })

	_, _ = p.Set(ctx, key, []byte("v1"), time.Minute)
	_, stale, _, _ := p.Gets(ctx, key)
	_, _ = p.Set(ctx, key, []byte("v2"), time.Minute)

	if deleted, err := p.CompareAndDelete(ctx, key, stale); err != nil || deleted {
		t.Fatalf("stale token: deleted=%v err=%v", deleted, err)
	}
	if v, ok, _ := p.Get(ctx, key); !ok || string(v) != "v2" {
		t.Fatalf("expected v2 to survive, got %q ok=%v", v, ok)
	}
	_, tok, _, _ := p.Gets(ctx, key)
	if deleted, err := p.CompareAndDelete(ctx, key, tok); err != nil || !deleted {
		t.Fatalf("current token: deleted=%v err=%v", deleted, err)
	}
	if n := rdb.Exists(ctx, key).Val(); n != 0 {
		t.Fatalf("key still exists")
	}
}

func TestRedisPersistWithoutTTL(t *testing.T) {
	ctx := context.Background()
	p, rdb := newTestProvider(t)
	key := "sessioncas:test:" + t.Name()
	t.Cleanup(func() { rdb.Del(ctx, key) })

	_, _ = p.Set(ctx, key, []byte("v1"), time.Minute)
	_, tok, _, _ := p.Gets(ctx, key)
	if swapped, err := p.CompareAndSwap(ctx, key, []byte("v2"), tok, 0); err != nil || !swapped {
		t.Fatalf("CAS: swapped=%v err=%v", swapped, err)
	}
	if ttl := rdb.PTTL(ctx, key).Val(); ttl >= 0 {
		t.Fatalf("expected no expiry after ttl=0 CAS, got %v", ttl)
	}
}

func TestRedisBinaryTransparency(t *testing.T) {
	ctx := context.Background()
	p, rdb := newTestProvider(t)
	key := "sessioncas:test:" + t.Name()
	t.Cleanup(func() { rdb.Del(ctx, key) })

	in := make([]byte, 70*1024)
	for i := range in {
		in[i] = byte(i)
	}
	if _, err := p.Set(ctx, key, in, time.Minute); err != nil {
		t.Fatal(err)
	}
	out, _, ok, err := p.Gets(ctx, key)
	if err != nil || !ok || len(out) != len(in) {
		t.Fatalf("Gets: len=%d ok=%v err=%v", len(out), ok, err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

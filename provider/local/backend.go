package local

import (
	"sync"
	"time"
)

// Backend is the raw byte storage under a local Provider. The Provider owns versioning,
// TTL enforcement and CAS; a Backend only has to store and return opaque values.
// Backends may drop entries at any time (eviction), which the Provider observes as a miss.
type Backend interface {
	Get(key string) ([]byte, bool)
	// Set stores value; ttl is a hint for backends that can evict on their own.
	Set(key string, value []byte, ttl time.Duration) bool
	Del(key string)
	Close() error
}

// Ranger is implemented by backends that can enumerate their entries. The Provider's
// sweep loop uses it to purge expired sessions from backends that never evict.
type Ranger interface {
	Range(fn func(key string, value []byte) bool)
}

// MapBackend is an unbounded map. The zero value is not usable; use NewMapBackend.
type MapBackend struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var (
	_ Backend = (*MapBackend)(nil)
	_ Ranger  = (*MapBackend)(nil)
)

func NewMapBackend() *MapBackend {
	return &MapBackend{m: make(map[string][]byte)}
}

func (b *MapBackend) Get(key string) ([]byte, bool) {
	b.mu.RLock()
	v, ok := b.m[key]
	b.mu.RUnlock()
	return v, ok
}

func (b *MapBackend) Set(key string, value []byte, _ time.Duration) bool {
	b.mu.Lock()
	b.m[key] = value
	b.mu.Unlock()
	return true
}

func (b *MapBackend) Del(key string) {
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
}

// Range calls fn on a snapshot of the entries, so fn may call back into the backend.
func (b *MapBackend) Range(fn func(key string, value []byte) bool) {
	b.mu.RLock()
	keys := make([]string, 0, len(b.m))
	vals := make([][]byte, 0, len(b.m))
	for k, v := range b.m {
		keys = append(keys, k)
		vals = append(vals, v)
	}
	b.mu.RUnlock()
	for i := range keys {
		if !fn(keys[i], vals[i]) {
			return
		}
	}
}

func (b *MapBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

func (b *MapBackend) Close() error { return nil }

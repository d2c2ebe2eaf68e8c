// Package redis implements provider.Provider on Redis.
//
// Each key is a hash {v: version, d: data}. Gets reads both fields in one HMGET;
// CompareAndSwap, CompareAndDelete and Set run as Lua scripts so the version check and
// the write are atomic on the server. Set starts every incarnation of a key at a random 62-bit version, so a token
// read before a delete never matches the recreated key.
package redis

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/sessioncas/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const (
	fieldVersion = "v"
	fieldData    = "d"
)

// KEYS[1]=key ARGV[1]=expected version ARGV[2]=data ARGV[3]=ttl ms (<=0: persist)
var casScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'v')
if not v or v ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'd', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'v', 1)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// KEYS[1]=key ARGV[1]=fresh version ARGV[2]=data ARGV[3]=ttl ms (<=0: persist)
var setScript = goredis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'd', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// KEYS[1]=key ARGV[1]=expected version
var cadScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'v')
if not v or v ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.HGet(ctx, key, fieldData).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Gets(ctx context.Context, key string) ([]byte, pr.Token, bool, error) {
	vals, err := p.rdb.HMGet(ctx, key, fieldVersion, fieldData).Result()
	if err != nil {
		return nil, nil, false, err
	}
	ver, vok := vals[0].(string)
	data, dok := vals[1].(string)
	if !vok || !dok {
		return nil, nil, false, nil
	}
	return []byte(data), ver, true, nil
}

func (p *Redis) CompareAndSwap(ctx context.Context, key string, value []byte, token pr.Token, ttl time.Duration) (bool, error) {
	ver, ok := token.(string)
	if !ok {
		return false, nil
	}
	n, err := casScript.Run(ctx, p.rdb, []string{key}, ver, value, ttlMillis(ttl)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Redis) CompareAndDelete(ctx context.Context, key string, token pr.Token) (bool, error) {
	ver, ok := token.(string)
	if !ok {
		return false, nil
	}
	n, err := cadScript.Run(ctx, p.rdb, []string{key}, ver).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ver := strconv.FormatInt(rand.Int64N(1<<62)+1, 10)
	if err := setScript.Run(ctx, p.rdb, []string{key}, ver, value, ttlMillis(ttl)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// ttlMillis rounds sub-millisecond TTLs up so they are not mistaken for "no expiry".
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	ms := ttl.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return ms
}

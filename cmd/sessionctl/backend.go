package main

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/internal/config"
	zaplog "github.com/unkn0wn-root/sessioncas/log/zap"
	pr "github.com/unkn0wn-root/sessioncas/provider"
	"github.com/unkn0wn-root/sessioncas/provider/memcache"
	"github.com/unkn0wn-root/sessioncas/provider/redis"
)

func newProvider(c *config.Config) (pr.Provider, error) {
	switch c.Backend {
	case config.BackendRedis:
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:       c.Redis.Addrs,
			Username:    c.Redis.Username,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			DialTimeout: c.Redis.DialTimeout.Duration,
		})
		return redis.New(redis.Config{Client: rdb, CloseClient: true})
	case config.BackendMemcache:
		return memcache.NewServers(c.Memcache.Timeout.Duration, c.Memcache.Servers...)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// openStore builds the store described by c.
func openStore(c *config.Config, logger *zap.Logger) (sessioncas.Store, error) {
	p, err := newProvider(c)
	if err != nil {
		return nil, err
	}
	return sessioncas.New(sessioncas.Options{
		Provider:              p,
		KeyPrefix:             c.KeyPrefix,
		DefaultTimeoutMinutes: c.DefaultTimeoutMinutes,
		Retry:                 c.RetryPolicy(),
		Logger:                zaplog.New(logger),
	})
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Package config loads the sessionctl configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/unkn0wn-root/sessioncas"
)

const (
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
)

// Duration is a time.Duration written as a string ("500ms", "2s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Backend               string `toml:"backend"`
	KeyPrefix             string `toml:"key-prefix"`
	DefaultTimeoutMinutes int    `toml:"default-timeout-minutes"`
	LogLevel              string `toml:"log-level"`

	Redis    RedisConfig    `toml:"redis"`
	Memcache MemcacheConfig `toml:"memcache"`
	Retry    RetryConfig    `toml:"retry"`
}

type RedisConfig struct {
	Addrs       []string `toml:"addrs"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	DialTimeout Duration `toml:"dial-timeout"`
}

type MemcacheConfig struct {
	Servers []string `toml:"servers"`
	Timeout Duration `toml:"timeout"`
}

type RetryConfig struct {
	MaxAttempts int      `toml:"max-attempts"`
	BaseDelay   Duration `toml:"base-delay"`
	MaxDelay    Duration `toml:"max-delay"`
	MaxElapsed  Duration `toml:"max-elapsed"`
}

func Default() *Config {
	p := sessioncas.DefaultRetryPolicy()
	return &Config{
		Backend:               BackendRedis,
		KeyPrefix:             sessioncas.DefaultKeyPrefix,
		DefaultTimeoutMinutes: sessioncas.DefaultTimeoutMinutes,
		LogLevel:              "info",
		Redis: RedisConfig{
			Addrs:       []string{"127.0.0.1:6379"},
			DialTimeout: Duration{5 * time.Second},
		},
		Memcache: MemcacheConfig{
			Servers: []string{"127.0.0.1:11211"},
			Timeout: Duration{500 * time.Millisecond},
		},
		Retry: RetryConfig{
			MaxAttempts: p.MaxAttempts,
			BaseDelay:   Duration{p.BaseDelay},
			MaxDelay:    Duration{p.MaxDelay},
			MaxElapsed:  Duration{p.MaxElapsed},
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	c := Default()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse is Load for an in-memory document.
func Parse(doc string) (*Config, error) {
	c := Default()
	meta, err := toml.Decode(doc, c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func checkUndecoded(meta toml.MetaData) error {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}
	return fmt.Errorf("config: undefined items: %s", strings.Join(keys, ", "))
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRedis:
		if len(c.Redis.Addrs) == 0 {
			return errors.New("config: redis.addrs must not be empty")
		}
	case BackendMemcache:
		if len(c.Memcache.Servers) == 0 {
			return errors.New("config: memcache.servers must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want %q or %q)", c.Backend, BackendRedis, BackendMemcache)
	}
	if c.DefaultTimeoutMinutes <= 0 {
		return errors.New("config: default-timeout-minutes must be greater than 0")
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New("config: retry.max-attempts must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry section for sessioncas.Options.
func (c *Config) RetryPolicy() sessioncas.RetryPolicy {
	return sessioncas.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay.Duration,
		MaxDelay:    c.Retry.MaxDelay.Duration,
		MaxElapsed:  c.Retry.MaxElapsed.Duration,
	}
}

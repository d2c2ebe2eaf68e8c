package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionctl.toml")
	doc := `
backend = "memcache"
key-prefix = "app:sess:"

[memcache]
servers = ["10.0.0.1:11211", "10.0.0.2:11211"]
timeout = "250ms"

[retry]
max-attempts = 8
base-delay = "1ms"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != BackendMemcache || c.KeyPrefix != "app:sess:" || len(c.Memcache.Servers) != 2 {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Memcache.Timeout.Duration != 250*time.Millisecond {
		t.Fatalf("timeout %v", c.Memcache.Timeout)
	}
	if c.DefaultTimeoutMinutes != 20 || c.LogLevel != "info" {
		t.Fatalf("defaults lost: %+v", c)
	}
	p := c.RetryPolicy()
	if p.MaxAttempts != 8 || p.BaseDelay != time.Millisecond || p.MaxDelay != 100*time.Millisecond {
		t.Fatalf("retry policy %+v", p)
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	_, err := Parse(`backend = "redis"
bakend = "typo"`)
	if err == nil || !strings.Contains(err.Error(), "bakend") {
		t.Fatalf("expected undefined item error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown backend": `backend = "etcd"`,
		"no servers":      "backend = \"memcache\"\n[memcache]\nservers = []",
		"bad timeout":     `default-timeout-minutes = -1`,
		"bad duration":    "[redis]\ndial-timeout = \"soon\"",
	}
	for name, doc := range cases {
		if _, err := Parse(doc); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

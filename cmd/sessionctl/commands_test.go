package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/internal/config"
	"github.com/unkn0wn-root/sessioncas/provider/local"
)

// failingStore fails every read and counts Close calls.
type failingStore struct {
	sessioncas.Store
	closed int
}

func (f *failingStore) ReadShared(context.Context, string) (sessioncas.Result, error) {
	return sessioncas.Result{}, errors.New("connection refused")
}

func (f *failingStore) Close(context.Context) error {
	f.closed++
	return nil
}

// keepOpen outlives each command run so state carries across invocations.
type keepOpen struct{ sessioncas.Store }

func (keepOpen) Close(context.Context) error { return nil }

func newTestStore(t *testing.T) sessioncas.Store {
	t.Helper()
	s, err := sessioncas.New(sessioncas.Options{Provider: local.New(local.Config{})})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return keepOpen{s}
}

func run(t *testing.T, store sessioncas.Store, args ...string) (string, error) {
	t.Helper()
	var gotBackend string
	a := &app{open: func(c *config.Config, _ *zap.Logger) (sessioncas.Store, error) {
		gotBackend = c.Backend
		return store, nil
	}}
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := a.execute(context.Background(), root)
	if err == nil && gotBackend == "" {
		t.Fatalf("store was never opened")
	}
	return out.String(), err
}

func TestSeedGetUnlockRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if out, err := run(t, store, "seed", "s1", "--timeout", "30"); err != nil || !strings.Contains(out, `seeded "s1"`) {
		t.Fatalf("seed: %q %v", out, err)
	}
	out, err := run(t, store, "get", "s1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"status:  found", "actions: initialize_item", "timeout: 30m"} {
		if !strings.Contains(out, want) {
			t.Fatalf("get output missing %q:\n%s", want, out)
		}
	}

	res, _ := store.AcquireExclusive(ctx, "s1")
	if out, _ := run(t, store, "get", "s1"); !strings.Contains(out, "status:  locked") || !strings.Contains(out, "lock-id: 1") {
		t.Fatalf("expected locked output:\n%s", out)
	}
	if _, err := run(t, store, "unlock", "s1", "--lock-id", "1"); err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.ReadShared(ctx, "s1"); rs.Status != sessioncas.StatusFound {
		t.Fatalf("unlock did not release: %v", rs.Status)
	}

	if _, err := run(t, store, "rm", "s1", "--lock-id", "99"); err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.ReadShared(ctx, "s1"); rs.Status != sessioncas.StatusFound {
		t.Fatalf("rm with a stale lock id must not delete")
	}
	if _, err := run(t, store, "rm", "s1", "--lock-id", "1"); err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.ReadShared(ctx, "s1"); rs.Status != sessioncas.StatusNotFound {
		t.Fatalf("rm did not delete: %v (lock %d)", rs.Status, res.LockID)
	}
}

func TestGetRaw(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_ = store.ReleaseAndWrite(ctx, "s1", 0, []byte("a=1"), 20, true)

	out, err := run(t, store, "get", "--raw", "s1")
	if err != nil || out != "a=1" {
		t.Fatalf("raw get: %q %v", out, err)
	}
}

func TestTouchAndFlags(t *testing.T) {
	store := newTestStore(t)
	if _, err := run(t, store, "touch", "missing"); err != nil {
		t.Fatalf("touch on a missing session should be a no-op: %v", err)
	}
	if _, err := run(t, store, "unlock", "s1"); err == nil {
		t.Fatalf("unlock without --lock-id should fail")
	}
	if _, err := run(t, store, "get"); err == nil {
		t.Fatalf("get without id should fail")
	}
}

func TestBackendOverrideValidated(t *testing.T) {
	store := newTestStore(t)
	if _, err := run(t, store, "--backend", "etcd", "get", "s1"); err == nil {
		t.Fatalf("unknown backend should fail validation")
	}
}

func TestStoreClosedWhenCommandFails(t *testing.T) {
	store := &failingStore{}
	if _, err := run(t, store, "get", "s1"); err == nil {
		t.Fatalf("expected get to fail")
	}
	if store.closed != 1 {
		t.Fatalf("store closed %d times after a failed command, want 1", store.closed)
	}
}

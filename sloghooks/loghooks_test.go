package sloghooks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestKeysAreRedacted(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.SelfHeal("sess:secret-session-id", "corrupt")
	out := buf.String()
	if strings.Contains(out, "secret-session-id") {
		t.Fatalf("raw key leaked: %q", out)
	}
	if !strings.Contains(out, "sessioncas.self_heal") || !strings.Contains(out, "reason=corrupt") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCustomRedactor(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(string) string { return "xxx" }})
	h.StaleLock("remove", "sess:a", 1, 2)
	if !strings.Contains(buf.String(), "key=xxx") {
		t.Fatalf("custom redactor not used: %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{CASConflictEvery: 10})
	for i := 0; i < 100; i++ {
		h.CASConflict("acquire_exclusive", "k", i)
	}
	if n := strings.Count(buf.String(), "sessioncas.cas_conflict"); n != 10 {
		t.Fatalf("expected 10 sampled lines, got %d", n)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	h := New(nil, Options{})
	h.ProviderError("remove", nil)
	h.LockBusy("k", 0)
}

package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseLevel(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	ctx := context.Background()
	l.Debug(ctx, "msg")
	l.Info(ctx, "msg", "k", "v")
	l.Warn(ctx, "msg")
	l.Error(ctx, errors.New("boom"), "msg")
	if l.With("k", "v") == nil {
		t.Fatal("With returned nil")
	}
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if Nop() != l {
		t.Fatal("Nop should be a shared instance")
	}
}

func TestContext_RoundTrip(t *testing.T) {
	if FromContext(context.Background()) != Nop() {
		t.Fatal("empty context should fall back to Nop")
	}

	l, err := New(Options{App: "test", Writer: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("FromContext did not return the stored logger")
	}

	ctx = WithContext(context.Background(), nil)
	if FromContext(ctx) != Nop() {
		t.Fatal("nil logger in context should fall back to Nop")
	}
}

package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelInfo, Component: ComponentApp})

	l.WithComponent(ComponentClover).Info("page fetched", FieldPage, 2)

	out := buf.String()
	if !strings.Contains(out, "component=clover") {
		t.Fatalf("expected component attribute, got %q", out)
	}
	if !strings.Contains(out, "page=2") {
		t.Fatalf("expected page attribute, got %q", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelWarn})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithComponent(ComponentReport).WithMonth(2025, 6).WithError(errors.New("boom"))
	if len(f.ToSlice()) != 8 {
		t.Fatalf("expected 4 key/value pairs, got %v", f.ToSlice())
	}
	if f[FieldError] != "boom" {
		t.Fatalf("unexpected error field: %v", f[FieldError])
	}
}

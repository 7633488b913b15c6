package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"chatty":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Infof("hidden")
	l.Warnf("shown key=%d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN shown key=1") {
		t.Errorf("missing warn line: %q", out)
	}
}

func TestLogger_ComponentAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).With("engine")
	l.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	l.Debugf("record_done path=%s", "a.md")

	want := "2026-10-16T09:00:00Z DEBUG engine: record_done path=a.md\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	if l.Enabled(LevelError) {
		t.Error("nil logger should report disabled")
	}
}

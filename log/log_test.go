package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	return entry
}

// ---------------------------------------------------------------------------
// Child loggers
// ---------------------------------------------------------------------------

func TestLogger_ModuleAndPeer(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelDebug).Module("les").Peer("abcd")

	l.Info("handshake complete", "height", 100)

	entry := decodeEntry(t, &buf)
	if entry["module"] != "les" {
		t.Fatalf("module = %v, want %q", entry["module"], "les")
	}
	if entry["peer"] != "abcd" {
		t.Fatalf("peer = %v, want %q", entry["peer"], "abcd")
	}
	if v, ok := entry["height"].(float64); !ok || v != 100 {
		t.Fatalf("height = %v, want 100", entry["height"])
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level  slog.Level
		logFn  func(l *Logger)
		expect bool
	}{
		{slog.LevelInfo, func(l *Logger) { l.Debug("nope") }, false},
		{slog.LevelInfo, func(l *Logger) { l.Info("yes") }, true},
		{slog.LevelWarn, func(l *Logger) { l.Info("nope") }, false},
		{slog.LevelWarn, func(l *Logger) { l.Warn("yes") }, true},
		{slog.LevelError, func(l *Logger) { l.Error("yes") }, true},
		{slog.LevelDebug, func(l *Logger) { l.Debug("yes") }, true},
	}
	for i, tt := range tests {
		var buf bytes.Buffer
		tt.logFn(NewWithWriter(&buf, tt.level))
		if got := buf.Len() > 0; got != tt.expect {
			t.Errorf("test %d: output=%v, want %v (level=%v)", i, got, tt.expect, tt.level)
		}
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	Discard().Error("dropped", "k", "v")
}

// ---------------------------------------------------------------------------
// Default logger
// ---------------------------------------------------------------------------

func TestDefaultLogger(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelDebug)
	SetDefault(l)
	defer SetDefault(New(slog.LevelInfo))

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	out := buf.String()
	for _, msg := range []string{`"d"`, `"i"`, `"w"`, `"e"`} {
		if !strings.Contains(out, msg) {
			t.Errorf("missing message %s in output", msg)
		}
	}

	SetDefault(nil)
	if Default() != l {
		t.Fatal("SetDefault(nil) replaced the logger")
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      slog.Level
	}{
		{0, slog.LevelError},
		{1, slog.LevelError},
		{2, slog.LevelWarn},
		{3, slog.LevelInfo},
		{4, slog.LevelDebug},
		{5, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

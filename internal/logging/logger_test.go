package logging

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = prev })
	return logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogCommand(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogCommand("mkdisk", map[string]string{"size": "3"}, time.Millisecond, nil)
	LogCommand("fdisk", nil, time.Millisecond, errors.New("no space"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["command"] != "mkdisk" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "no space" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestLogRawBytes(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)
	LogRawBytes("mbr", 0, []byte("abc"))
	if logs.Len() != 0 {
		t.Errorf("raw bytes logged at info level")
	}

	logs = observe(t, zapcore.DebugLevel)
	LogRawBytes("mbr", 16, []byte{'a', 0, 'b'})
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "610062" || fields["ascii"] != "a.b" || fields["offset"] != int64(16) {
		t.Errorf("fields = %v", fields)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("hello", 2); got != "he..." {
		t.Errorf("truncate() = %q", got)
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(NewLogger("info", "json", &buf), "web")
	logger.Debug("hidden")
	logger.Info("visible", "size", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["msg"] != "visible" || entry["component"] != "web" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLogger_TextAndTint(t *testing.T) {
	for _, format := range []string{"text", "tint"} {
		var buf bytes.Buffer
		NewLogger("debug", format, &buf).Debug("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("format %s output = %q, want it to contain hello", format, buf.String())
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("123456:ABCDEFGHIJ"); got != "1234...GHIJ" {
		t.Errorf("SanitizeToken() = %q", got)
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "")

	Info("hello", "key", "value")
	Debug("hidden")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug message should be filtered at info level: %s", line)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if entry["msg"] != "hello" || entry["key"] != "value" || entry["service"] != "mitzi" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestInitWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "text")

	Warn("careful", "n", 1)
	if !strings.Contains(buf.String(), "msg=careful") {
		t.Errorf("expected text handler output, got %q", buf.String())
	}
}

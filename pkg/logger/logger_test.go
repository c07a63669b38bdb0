package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent-chat.log")
	if err := Init(Config{Level: "debug", Format: "json", Output: path}); err != nil {
		t.Fatalf("init: %v", err)
	}

	Named("controller").Debug("waiting for confirmation", "hash", "0xabc")
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, data)
	}
	if record["component"] != "controller" || record["hash"] != "0xabc" || record["level"] != "DEBUG" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	if err := Init(Config{Level: "warn", Output: path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	L().Info("hidden")
	L().Warn("shown")
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Fatalf("unexpected log contents %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLDefaultsWithoutInit(t *testing.T) {
	_ = Close()
	if L() == nil {
		t.Fatal("L should never return nil")
	}
}

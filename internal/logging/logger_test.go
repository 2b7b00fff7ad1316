package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fitmsgd.log")
	logger, err := New(Options{Path: path, Profile: "main", Level: "debug", Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("poll tick skipped")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "poll tick skipped" || entry["profile"] != "main" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitmsgd.log")
	logger, err := New(Options{Path: path, Level: "warn", Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dropped") || !strings.Contains(string(data), "kept") {
		t.Errorf("log = %q", data)
	}
}

func TestBadLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud", Quiet: true}); err == nil {
		t.Error("expected error for unknown level")
	}
}

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "threadstore.log")
	logger, err := New(path, "convctl", "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	logger.Debug("filtered out")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["component"] != "convctl" {
		t.Errorf("component = %v, want convctl", entry["component"])
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	for _, key := range []string{"ts", "pid", "run_id"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("missing %q field", key)
		}
	}
}

func TestNewStderrOnly(t *testing.T) {
	logger, err := New("", "convctl", "")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("stderr only")
}

func TestNewBadLevel(t *testing.T) {
	if _, err := New("", "convctl", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

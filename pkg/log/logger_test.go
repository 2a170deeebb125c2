package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "info")
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	l.WithRun("run-1", "serial-dilution").Info("run submitted", map[string]any{"simulate": true})
	l.Debug("hidden", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["message"] != "run submitted" {
		t.Errorf("message = %v, want %q", entry["message"], "run submitted")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["run_id"] != "run-1" || entry["protocol_id"] != "serial-dilution" {
		t.Errorf("run fields missing: %v", entry)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSugar(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	if err != nil {
		t.Fatal(err)
	}
	l.Sugar().Infof("listening on %s", ":8000")
	if !strings.Contains(buf.String(), "listening on :8000") {
		t.Errorf("output = %q", buf.String())
	}
}

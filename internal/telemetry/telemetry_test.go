package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nexusshell/nexus/internal/capability"
)

func TestNewLoggerFansOutToEachSink(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(slog.LevelInfo, false, &a, &b)
	logger.Info("hello", "k", "v")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("expected both sinks to receive the record, got %q", buf.String())
		}
	}
}

func TestNewLoggerDebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.LevelWarn, true, &buf)
	logger.Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Fatal("expected debug=true to lower the effective level to Debug")
	}
}

func TestAuditSinkWritesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	sink := NewAuditSink(&buf)

	if err := sink.WriteEntry(capability.AuditEntry{
		Timestamp: time.Now(),
		Action:    "fs:read",
		Resource:  "/tmp/a.txt",
		Granted:   true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.WriteEntry(capability.AuditEntry{
		Timestamp: time.Now(),
		Action:    "proc:kill",
		Resource:  "1",
		Granted:   false,
		Sandbox:   "sandbox",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["sandbox"] != "sandbox" || rec["granted"] != false {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestAuditSinkDrainWritesStoreEntries(t *testing.T) {
	store := capability.New(10)
	store.Check("fs:read", "/a")
	store.Check("fs:read", "/b")

	var buf bytes.Buffer
	sink := NewAuditSink(&buf)
	if err := sink.Drain(store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 drained lines, got %d", len(lines))
	}
}

func TestMetricsSinkAccumulatesSnapshot(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.LevelInfo, false, &buf)
	m := NewMetricsSink(logger)

	m.RecordCommand("pwd", 100, true)
	m.RecordCommand("bad", 200, false)

	total, failed, mean := m.Snapshot()
	if total != 2 {
		t.Fatalf("expected 2 total commands, got %d", total)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed command, got %d", failed)
	}
	if mean != 150 {
		t.Fatalf("expected mean latency 150, got %v", mean)
	}
}

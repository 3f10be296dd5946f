package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeDebugConfig(t *testing.T, ws string) {
	t.Helper()
	configDir := filepath.Join(ws, ".stenv")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	configContent := `logging:
  level: debug
  debug_mode: true
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestAuditTrailWritesEvents(t *testing.T) {
	ws := t.TempDir()
	writeDebugConfig(t, ws)

	if err := Initialize(ws); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer CloseAll()

	if err := InitAudit(); err != nil {
		t.Fatalf("audit init failed: %v", err)
	}

	AuditCommand(CommandEvent{
		Type:    "start",
		RunID:   "run-1",
		Command: "conda env list --json",
	})
	AuditCommand(CommandEvent{
		Type:       "complete",
		RunID:      "run-1",
		Command:    "conda env list --json",
		ExitCode:   0,
		DurationMs: 120,
	})
	CloseAudit()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(ws, ".stenv", "logs", date+"_audit.log")
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("audit file missing: %v", err)
	}
	defer file.Close()

	var events []CommandEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		var ev CommandEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", line, err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "start" || events[1].Type != "complete" {
		t.Fatalf("unexpected event order: %+v", events)
	}
	if events[1].DurationMs != 120 {
		t.Fatalf("duration not preserved: %+v", events[1])
	}
	if events[0].Timestamp == 0 {
		t.Fatalf("timestamp should be filled in")
	}
}

func TestAuditDisabledWithoutDebugMode(t *testing.T) {
	ws := t.TempDir()

	if err := Initialize(ws); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer CloseAll()

	if err := InitAudit(); err != nil {
		t.Fatalf("audit init failed: %v", err)
	}
	AuditCommand(CommandEvent{Type: "start", Command: "conda --version"})
	CloseAudit()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(ws, ".stenv", "logs", date+"_audit.log")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("audit file should not exist without debug mode")
	}
}

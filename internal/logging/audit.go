// Audit logging writes one JSON line per executed command so a failed
// bootstrap can be reconstructed after the fact. The trail complements the
// run ledger: the ledger stores step outcomes, the audit trail stores the
// raw command activity behind them.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CommandEvent is one audit trail entry.
type CommandEvent struct {
	Timestamp  int64  `json:"ts"`     // Unix milliseconds
	Type       string `json:"event"`  // start, complete, killed, error
	RunID      string `json:"run"`    // Bootstrap run correlation
	Command    string `json:"cmd"`    // Rendered command line
	ExitCode   int    `json:"exit"`   // Exit code (complete events)
	DurationMs int64  `json:"dur_ms"` // Duration in milliseconds
	Killed     bool   `json:"killed,omitempty"`
	KillReason string `json:"kill_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit trail file. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit trail started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit trail file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditCommand writes a command event to the trail.
func AuditCommand(event CommandEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// Package audit provides append-only structured logging for trust-core
// operations.
//
// Every token access (read, write, delete) and every update install is
// recorded to an audit log under the gitspace config directory as
// newline-delimited JSON.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionTokenRead      Action = "token_read"
	ActionTokenWrite     Action = "token_write"
	ActionTokenDelete    Action = "token_delete"
	ActionKeyDerived     Action = "key_derived"
	ActionUpdateInstall  Action = "update_install"
	ActionUpdateRollback Action = "update_rollback"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Host      string    `json:"host,omitempty"`
	Version   string    `json:"version,omitempty"` // update actions
	Actor     string    `json:"actor,omitempty"`   // "cli", "app"
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Package audit provides append-only structured logging for fulfillment
// and security events.
//
// Every security-relevant step (silent fulfillment, interactive
// fulfillment, cancellation, vault unlock, passcode failure, cached-key
// wipe) is recorded to an audit log at ~/.keygate/audit.log as
// newline-delimited JSON. Credential values never appear in the log.
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
	ActionFulfillSilent      Action = "fulfill_silent"
	ActionFulfillInteractive Action = "fulfill_interactive"
	ActionRequestCancelled   Action = "request_cancelled"
	ActionVaultUnlock        Action = "vault_unlock"
	ActionPasscodeFail       Action = "passcode_fail"
	ActionKeyWipe            Action = "key_wipe"
	ActionBiometricOK        Action = "biometric_ok"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Request   string    `json:"request,omitempty"` // request ID
	Vault     string    `json:"vault,omitempty"`   // provider:descriptor
	Item      string    `json:"item,omitempty"`    // item ID, never its contents
	Reason    string    `json:"reason,omitempty"`  // cancellation reason
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

// Recorder is the narrow interface consumed by the coordinator and gate,
// satisfied by *Logger and by test fakes.
type Recorder interface {
	Log(entry Entry) error
}

// Discard is a Recorder that drops entries. Used where auditing is not
// configured.
type Discard struct{}

func (Discard) Log(Entry) error { return nil }

package settings

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"
)

// AuditEntry is a single settings change in the audit log.
type AuditEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Version   int           `json:"version"`
	ChangedBy string        `json:"changed_by"` // "api", "admin", "cli"
	Changes   []FieldChange `json:"changes"`
}

// FieldChange records one field's old and new value.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// AuditLogger appends settings changes to a JSON lines file.
type AuditLogger struct {
	logPath string
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	LogPath string
	Enabled bool
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditLoggerConfig) (*AuditLogger, error) {
	if !cfg.Enabled {
		return &AuditLogger{enabled: false}, nil
	}

	dir := filepath.Dir(cfg.LogPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &AuditLogger{
		logPath: cfg.LogPath,
		file:    file,
		enabled: true,
	}, nil
}

// Log writes an audit entry to the log file.
func (a *AuditLogger) Log(entry AuditEntry) error {
	if !a.enabled {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	return nil
}

// GetEntries returns the last N audit entries, newest first.
func (a *AuditLogger) GetEntries(limit int) ([]AuditEntry, error) {
	if !a.enabled {
		return []AuditEntry{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []AuditEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// Skip malformed lines
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	for i := 0; i < len(entries)/2; i++ {
		j := len(entries) - i - 1
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// Close closes the audit log file.
func (a *AuditLogger) Close() error {
	if !a.enabled || a.file == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.file.Close()
}

// Diff compares two settings structs field by field, skipping the
// metadata fields that change on every update.
func Diff(old, new RuntimeSettings) []FieldChange {
	var changes []FieldChange

	oldVal := reflect.ValueOf(old)
	newVal := reflect.ValueOf(new)
	typ := oldVal.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "UpdatedAt" || field.Name == "Version" {
			continue
		}

		oldFieldVal := oldVal.Field(i).Interface()
		newFieldVal := newVal.Field(i).Interface()

		if !reflect.DeepEqual(oldFieldVal, newFieldVal) {
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok && tag != "" {
				name = tag
			}
			changes = append(changes, FieldChange{
				Field:    name,
				OldValue: oldFieldVal,
				NewValue: newFieldVal,
			})
		}
	}

	return changes
}

// Package settings provides a runtime settings service with persistence,
// validation, and an audit trail.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// RuntimeSettings are the knobs operators can adjust without a restart.
// Model identity and server binding stay in the static config; only the
// values that are safe to flip on a live process live here.
type RuntimeSettings struct {
	// TextColumn and LabelColumn are the default CSV column names for
	// evaluation and labelling requests that don't specify their own.
	TextColumn  string `json:"text_column"`
	LabelColumn string `json:"label_column"`

	// BatchSize is the default inference batch size.
	BatchSize int `json:"batch_size"`

	// Workers is the default evaluation fan-out width.
	Workers int `json:"workers"`

	// MaxUploadMB caps dataset uploads.
	MaxUploadMB int `json:"max_upload_mb"`

	// CacheEnabled and CacheTTLSeconds control the prediction cache.
	CacheEnabled    bool `json:"cache_enabled"`
	CacheTTLSeconds int  `json:"cache_ttl_seconds"`

	// RetainResults keeps labelled outputs in the dataset store after
	// they have been downloaded.
	RetainResults bool `json:"retain_results"`

	// Metadata
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Defaults returns the settings a fresh deployment starts with.
func Defaults() RuntimeSettings {
	return RuntimeSettings{
		TextColumn:      "text",
		LabelColumn:     "label",
		BatchSize:       16,
		Workers:         2,
		MaxUploadMB:     64,
		CacheEnabled:    true,
		CacheTTLSeconds: 3600,
		RetainResults:   true,
		UpdatedAt:       time.Now().UTC(),
		Version:         1,
	}
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the outcome of validating a settings update.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validate checks a settings struct for out-of-range values.
func (rs *RuntimeSettings) Validate() ValidationResult {
	result := ValidationResult{Valid: true}

	if rs.TextColumn == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "text_column",
			Message: "cannot be empty",
		})
	}

	if rs.LabelColumn == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "label_column",
			Message: "cannot be empty",
		})
	}

	if rs.BatchSize < 1 || rs.BatchSize > 256 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "batch_size",
			Message: "must be between 1 and 256",
		})
	}

	if rs.Workers < 1 || rs.Workers > 32 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "workers",
			Message: "must be between 1 and 32",
		})
	}

	if rs.MaxUploadMB < 1 || rs.MaxUploadMB > 1024 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "max_upload_mb",
			Message: "must be between 1 and 1024",
		})
	}

	if rs.CacheTTLSeconds < 0 || rs.CacheTTLSeconds > 86400 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cache_ttl_seconds",
			Message: "must be between 0 and 86400 (24h)",
		})
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// settingsFilename sits inside the service's storage directory.
const settingsFilename = "settings.json"

// Service manages runtime settings with persistence, audit logging, and
// change events.
type Service struct {
	mu          sync.RWMutex
	current     RuntimeSettings
	storagePath string
	eventBus    bus.Bus
	audit       *AuditLogger
	log         *logger.Logger
}

// ServiceConfig configures the settings service.
type ServiceConfig struct {
	// StoragePath is the directory settings.json and the audit log live in.
	StoragePath string

	// AuditEnabled turns the append-only change log on.
	AuditEnabled bool

	// Defaults seed a deployment with no persisted settings yet. Nil
	// falls back to Defaults(). Once settings.json exists it wins.
	Defaults *RuntimeSettings
}

// NewService creates the settings service, loading persisted settings or
// seeding defaults when none exist.
func NewService(cfg ServiceConfig, eventBus bus.Bus, log *logger.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	audit, err := NewAuditLogger(AuditLoggerConfig{
		LogPath: filepath.Join(cfg.StoragePath, "settings_audit.jsonl"),
		Enabled: cfg.AuditEnabled,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		storagePath: cfg.StoragePath,
		eventBus:    eventBus,
		audit:       audit,
		log:         log.WithComponent("settings"),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		s.current = Defaults()
		if cfg.Defaults != nil {
			s.current = *cfg.Defaults
			s.current.UpdatedAt = time.Now().UTC()
			s.current.Version = 1
		}
		if err := s.persist(s.current); err != nil {
			s.log.Warn("failed to persist default settings", "error", err)
		}
	}

	return s, nil
}

// Load reads persisted settings from a storage directory without
// starting the service. Commands that only need the operator's current
// defaults use this; a missing or unreadable file returns the fallback.
func Load(storagePath string, fallback RuntimeSettings) RuntimeSettings {
	data, err := os.ReadFile(filepath.Join(storagePath, settingsFilename))
	if err != nil {
		return fallback
	}

	var rs RuntimeSettings
	if err := json.Unmarshal(data, &rs); err != nil {
		return fallback
	}
	return rs
}

// Get returns the current settings.
func (s *Service) Get() RuntimeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns the current settings version.
func (s *Service) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// Update validates, persists, audits, and announces a settings change.
// changedBy records who asked ("api", "admin", "cli").
func (s *Service) Update(ctx context.Context, next RuntimeSettings, changedBy string) (ValidationResult, error) {
	result := next.Validate()
	if !result.Valid {
		return result, fmt.Errorf("settings validation failed with %d errors", len(result.Errors))
	}

	s.mu.Lock()
	old := s.current
	next.UpdatedAt = time.Now().UTC()
	next.Version = old.Version + 1

	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return result, fmt.Errorf("failed to save settings: %w", err)
	}
	s.current = next
	s.mu.Unlock()

	changes := Diff(old, next)
	if err := s.audit.Log(AuditEntry{
		Version:   next.Version,
		ChangedBy: changedBy,
		Changes:   changes,
	}); err != nil {
		s.log.Warn("failed to write settings audit entry", "error", err)
	}

	if s.eventBus != nil {
		fields := make([]string, 0, len(changes))
		for _, c := range changes {
			fields = append(fields, c.Field)
		}
		event := bus.NewEvent("settings", bus.EventSettingsChanged, bus.SettingsChangedPayload{
			Version:   next.Version,
			ChangedBy: changedBy,
			Fields:    fields,
		})
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish settings changed event", "error", err)
		}
	}

	s.log.Info("settings updated",
		"version", next.Version,
		"changed_by", changedBy,
		"fields", len(changes),
	)

	return result, nil
}

// Reset restores the defaults.
func (s *Service) Reset(ctx context.Context, changedBy string) error {
	_, err := s.Update(ctx, Defaults(), changedBy)
	return err
}

// AuditEntries returns the most recent audit entries, newest first.
func (s *Service) AuditEntries(limit int) ([]AuditEntry, error) {
	return s.audit.GetEntries(limit)
}

// Close releases the audit log file.
func (s *Service) Close() error {
	return s.audit.Close()
}

func (s *Service) settingsFile() string {
	return filepath.Join(s.storagePath, settingsFilename)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.settingsFile())
	if err != nil {
		return err
	}

	var rs RuntimeSettings
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}

	s.current = rs
	return nil
}

// persist writes through a temp file so a crash mid-write can't leave a
// truncated settings file. Caller holds the lock (or is in NewService).
func (s *Service) persist(rs RuntimeSettings) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp := s.settingsFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, s.settingsFile())
}

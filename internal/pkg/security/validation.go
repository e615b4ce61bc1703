// Package security provides security utilities for input validation,
// sanitization, and sensitive data masking.
package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	// Review text limits.
	MinTextLength = 1
	MaxTextLength = 10000

	// Dataset id limits.
	MinDatasetIDLength = 1
	MaxDatasetIDLength = 64

	// CSV column name limits.
	MaxColumnNameLength = 128

	// Batch limits.
	MinBatchSize = 1
	MaxBatchSize = 256
	MinWorkers   = 1
	MaxWorkers   = 64

	// Upload limits.
	MaxUploadSize = 50 * 1024 * 1024 // 50MB
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// datasetIDRegex matches valid dataset ids: alphanumeric, hyphen, underscore.
var datasetIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// columnNameRegex rejects control characters in CSV column names.
var columnNameRegex = regexp.MustCompile(`^[^\x00-\x1f]+$`)

// ValidateText validates a review text string.
// Requirements: Required, 1-10000 chars, valid UTF-8.
func ValidateText(text string) error {
	if text == "" {
		return &ValidationError{
			Field:      "text",
			Constraint: "required",
		}
	}

	length := utf8.RuneCountInString(text)
	if length < MinTextLength {
		return &ValidationError{
			Field:      "text",
			Value:      length,
			Constraint: fmt.Sprintf("minimum length is %d characters", MinTextLength),
		}
	}

	if length > MaxTextLength {
		return &ValidationError{
			Field:      "text",
			Value:      length,
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxTextLength),
		}
	}

	if !utf8.ValidString(text) {
		return &ValidationError{
			Field:      "text",
			Constraint: "must be valid UTF-8",
		}
	}

	return nil
}

// ValidateDatasetID validates a stored dataset id.
// Requirements: Required, 1-64 chars, alphanumeric + hyphen + underscore, must start with alphanumeric.
func ValidateDatasetID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:      "dataset",
			Constraint: "required",
		}
	}

	if len(id) > MaxDatasetIDLength {
		return &ValidationError{
			Field:      "dataset",
			Value:      len(id),
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxDatasetIDLength),
		}
	}

	if !datasetIDRegex.MatchString(id) {
		return &ValidationError{
			Field:      "dataset",
			Value:      SanitizeForLog(id),
			Constraint: "must contain only alphanumeric characters, hyphens, and underscores, and start with alphanumeric",
		}
	}

	return nil
}

// ValidateColumnName validates a CSV column name supplied by the caller.
func ValidateColumnName(field, name string) error {
	if name == "" {
		return &ValidationError{
			Field:      field,
			Constraint: "required",
		}
	}

	if len(name) > MaxColumnNameLength {
		return &ValidationError{
			Field:      field,
			Value:      len(name),
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxColumnNameLength),
		}
	}

	if !columnNameRegex.MatchString(name) {
		return &ValidationError{
			Field:      field,
			Value:      SanitizeForLog(name),
			Constraint: "must not contain control characters",
		}
	}

	return nil
}

// ValidateBatchSize validates the batch_size parameter.
// Requirements: 1-256.
func ValidateBatchSize(batchSize int) error {
	if batchSize < MinBatchSize {
		return &ValidationError{
			Field:      "batch_size",
			Value:      batchSize,
			Constraint: fmt.Sprintf("minimum value is %d", MinBatchSize),
		}
	}

	if batchSize > MaxBatchSize {
		return &ValidationError{
			Field:      "batch_size",
			Value:      batchSize,
			Constraint: fmt.Sprintf("maximum value is %d", MaxBatchSize),
		}
	}

	return nil
}

// ValidateWorkers validates the workers parameter.
// Requirements: 1-64.
func ValidateWorkers(workers int) error {
	if workers < MinWorkers {
		return &ValidationError{
			Field:      "workers",
			Value:      workers,
			Constraint: fmt.Sprintf("minimum value is %d", MinWorkers),
		}
	}

	if workers > MaxWorkers {
		return &ValidationError{
			Field:      "workers",
			Value:      workers,
			Constraint: fmt.Sprintf("maximum value is %d", MaxWorkers),
		}
	}

	return nil
}

// ValidateCSVFilename validates an uploaded dataset filename.
// Requirements: relative path, .csv extension, passes path validation.
func ValidateCSVFilename(name string) error {
	if name == "" {
		return &ValidationError{
			Field:      "filename",
			Constraint: "required",
		}
	}

	if err := ValidatePath(name); err != nil {
		return &ValidationError{
			Field:      "filename",
			Value:      SanitizeForLog(name),
			Constraint: err.Error(),
		}
	}

	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return &ValidationError{
			Field:      "filename",
			Value:      SanitizeForLog(name),
			Constraint: "must have a .csv extension",
		}
	}

	return nil
}

// ValidateUploadSize validates the size of an uploaded file.
func ValidateUploadSize(size int64) error {
	if size <= 0 {
		return &ValidationError{
			Field:      "file",
			Constraint: "empty upload",
		}
	}

	if size > MaxUploadSize {
		return &ValidationError{
			Field:      "file",
			Value:      formatSize(int(size)),
			Constraint: fmt.Sprintf("maximum size is %s", formatSize(MaxUploadSize)),
		}
	}

	return nil
}

// ClassifyRequestValidator provides validation for classify requests.
type ClassifyRequestValidator struct {
	Text string
}

// Validate validates all fields in the classify request.
func (v *ClassifyRequestValidator) Validate() error {
	return ValidateText(v.Text)
}

// LabelRequestValidator provides validation for dataset labelling requests.
type LabelRequestValidator struct {
	Filename   string
	Size       int64
	TextColumn string
}

// Validate validates all fields in the labelling request.
func (v *LabelRequestValidator) Validate() error {
	if err := ValidateCSVFilename(v.Filename); err != nil {
		return err
	}

	if err := ValidateUploadSize(v.Size); err != nil {
		return err
	}

	if v.TextColumn != "" {
		if err := ValidateColumnName("text_col", v.TextColumn); err != nil {
			return err
		}
	}

	return nil
}

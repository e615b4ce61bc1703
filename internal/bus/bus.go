// Package bus provides event bus implementations for classification
// lifecycle notifications.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to all subscribers of its type.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for events of the given type.
	Subscribe(ctx context.Context, eventType string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "review.classified").
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links the event to the request that caused it.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Event types published by the application.
const (
	// EventReviewClassified is emitted after every successful inference call.
	EventReviewClassified = "review.classified"

	// EventEvaluationCompleted is emitted when a batch evaluation run finishes.
	EventEvaluationCompleted = "evaluation.completed"

	// EventDatasetLabelled is emitted when an uploaded CSV has been labelled.
	EventDatasetLabelled = "dataset.labelled"

	// EventDatasetCleaned is emitted when a raw review dump has been cleaned.
	EventDatasetCleaned = "dataset.cleaned"

	// EventModelPulled is emitted when a model download completes.
	EventModelPulled = "model.pulled"

	// EventSettingsChanged is emitted when runtime settings are updated.
	EventSettingsChanged = "settings.changed"
)

// NewEvent creates an event with a fresh ID and the current timestamp.
func NewEvent(source, eventType string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// ClassifiedPayload is the payload of a review.classified event.
type ClassifiedPayload struct {
	Model      string  `json:"model"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached"`
	DurationMs int64   `json:"duration_ms"`
}

// EvaluationCompletedPayload is the payload of an evaluation.completed event.
type EvaluationCompletedPayload struct {
	ReportID   string  `json:"report_id"`
	Model      string  `json:"model"`
	Dataset    string  `json:"dataset"`
	Rows       int     `json:"rows"`
	Scored     int     `json:"scored"`
	Accuracy   float64 `json:"accuracy"`
	DurationMs int64   `json:"duration_ms"`
}

// DatasetLabelledPayload is the payload of a dataset.labelled event.
type DatasetLabelledPayload struct {
	DatasetID string         `json:"dataset_id,omitempty"`
	Filename  string         `json:"filename"`
	Model     string         `json:"model"`
	Rows      int            `json:"rows"`
	Labelled  int            `json:"labelled"`
	Counts    map[string]int `json:"counts"`
}

// DatasetCleanedPayload is the payload of a dataset.cleaned event.
type DatasetCleanedPayload struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	RowsIn  int    `json:"rows_in"`
	RowsOut int    `json:"rows_out"`
	Dropped int    `json:"dropped"`
}

// ModelPulledPayload is the payload of a model.pulled event.
type ModelPulledPayload struct {
	Model    string `json:"model"`
	Revision string `json:"revision,omitempty"`
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
}

// SettingsChangedPayload is the payload of a settings.changed event.
type SettingsChangedPayload struct {
	Version   int      `json:"version"`
	ChangedBy string   `json:"changed_by"`
	Fields    []string `json:"fields"`
}

package bus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventLogger(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "events.log")

	t.Run("NewEventLogger_Enabled", func(t *testing.T) {
		logger, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		if !logger.IsEnabled() {
			t.Error("Expected logger to be enabled")
		}
	})

	t.Run("NewEventLogger_Disabled", func(t *testing.T) {
		logger, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.IsEnabled() {
			t.Error("Expected logger to be disabled")
		}
	})

	t.Run("Log_Enabled", func(t *testing.T) {
		logger, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		event := NewEvent("test", EventReviewClassified, ClassifiedPayload{
			Model: "test-model",
			Label: "Valid",
		})

		if err := logger.Log(event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Fatal("Log file was not created")
		}
	})

	t.Run("Log_Disabled", func(t *testing.T) {
		logger, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		// No-op, no error
		if err := logger.Log(NewEvent("test", EventReviewClassified, nil)); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	})

	t.Run("GetEvents", func(t *testing.T) {
		os.Remove(logPath)

		logger, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := logger.Log(NewEvent("test", EventDatasetLabelled, nil)); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		events, err := logger.GetEvents(start.Add(-time.Minute), 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 5 {
			t.Errorf("Expected 5 events, got %d", len(events))
		}

		events, err = logger.GetEvents(start.Add(-time.Minute), 3)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 3 {
			t.Errorf("Expected 3 events (limit), got %d", len(events))
		}

		// A cutoff in the future filters everything out
		events, err = logger.GetEvents(time.Now().Add(time.Hour), 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected 0 events after future cutoff, got %d", len(events))
		}
	})

	t.Run("GetEvents_MissingFile", func(t *testing.T) {
		logger, err := NewEventLogger(filepath.Join(tempDir, "never-written.log"), true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		logger.Close()
		os.Remove(filepath.Join(tempDir, "never-written.log"))

		events, err := logger.GetEvents(time.Time{}, 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected 0 events from missing file, got %d", len(events))
		}
	})

	t.Run("Replay", func(t *testing.T) {
		os.Remove(logPath)

		logger, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer logger.Close()

		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := logger.Log(NewEvent("test", EventModelPulled, nil)); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		replayBus := NewMemoryBus()
		defer replayBus.Close()

		var count atomic.Int32
		ctx := context.Background()
		err = replayBus.Subscribe(ctx, EventModelPulled, func(ctx context.Context, event Event) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if err := logger.Replay(ctx, replayBus, start.Add(-time.Minute)); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}

		if !replayBus.DrainTimeout(time.Second) {
			t.Fatal("Timeout waiting for replayed events")
		}

		if count.Load() != 3 {
			t.Errorf("Expected 3 replayed events, got %d", count.Load())
		}
	})
}

func TestLoggedBus(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "logged_bus.log")

	t.Run("Publish_LogsEvent", func(t *testing.T) {
		innerBus := NewMemoryBus()
		defer innerBus.Close()

		eventLogger, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}

		loggedBus := NewLoggedBus(innerBus, eventLogger, nil)
		defer loggedBus.Close()

		event := NewEvent("test", EventDatasetCleaned, DatasetCleanedPayload{
			RowsIn:  100,
			RowsOut: 90,
			Dropped: 10,
		})

		ctx := context.Background()
		if err := loggedBus.Publish(ctx, event); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		events, err := eventLogger.GetEvents(time.Now().Add(-time.Minute), 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}

		if len(events) != 1 {
			t.Fatalf("Expected 1 logged event, got %d", len(events))
		}

		if events[0].Event.ID != event.ID {
			t.Errorf("Logged event ID = %s, want %s", events[0].Event.ID, event.ID)
		}
	})

	t.Run("Publish_DeliversToSubscribers", func(t *testing.T) {
		innerBus := NewMemoryBus()

		eventLogger, err := NewEventLogger(filepath.Join(tempDir, "deliver.log"), true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}

		loggedBus := NewLoggedBus(innerBus, eventLogger, nil)
		defer loggedBus.Close()

		var count atomic.Int32
		ctx := context.Background()
		loggedBus.Subscribe(ctx, EventDatasetCleaned, func(ctx context.Context, event Event) error {
			count.Add(1)
			return nil
		})

		if err := loggedBus.Publish(ctx, NewEvent("test", EventDatasetCleaned, nil)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		if !innerBus.DrainTimeout(time.Second) {
			t.Fatal("Timeout waiting for event delivery")
		}
		if count.Load() != 1 {
			t.Errorf("Subscriber received %d events, want 1", count.Load())
		}
	})
}

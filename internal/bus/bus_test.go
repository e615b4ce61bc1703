package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	e1 := NewEvent("api", EventReviewClassified, ClassifiedPayload{Label: "Valid"})
	e2 := NewEvent("api", EventReviewClassified, nil)

	if e1.ID == "" {
		t.Error("NewEvent() produced empty ID")
	}
	if e1.ID == e2.ID {
		t.Error("NewEvent() produced duplicate IDs")
	}
	if e1.Type != EventReviewClassified {
		t.Errorf("Type = %s, want %s", e1.Type, EventReviewClassified)
	}
	if e1.Source != "api" {
		t.Errorf("Source = %s, want api", e1.Source)
	}
	if e1.Timestamp <= 0 {
		t.Errorf("Timestamp = %d, want > 0", e1.Timestamp)
	}
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	err := bus.Subscribe(context.Background(), EventReviewClassified, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if got := received.Load(); got != 3 {
		t.Errorf("Received %d events, want 3", got)
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var count1, count2 atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), EventDatasetLabelled, func(ctx context.Context, event Event) error {
		count1.Add(1)
		wg.Done()
		return nil
	})

	bus.Subscribe(context.Background(), EventDatasetLabelled, func(ctx context.Context, event Event) error {
		count2.Add(1)
		wg.Done()
		return nil
	})

	// One event, both subscribers receive it
	wg.Add(2)
	bus.Publish(context.Background(), NewEvent("test", EventDatasetLabelled, nil))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout")
	}

	if count1.Load() != 1 || count2.Load() != 1 {
		t.Errorf("Expected both subscribers to receive 1 event, got %d and %d", count1.Load(), count2.Load())
	}
}

func TestMemoryBus_TypeDispatch(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var classified, labelled atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), EventReviewClassified, func(ctx context.Context, event Event) error {
		classified.Add(1)
		wg.Done()
		return nil
	})
	bus.Subscribe(context.Background(), EventDatasetLabelled, func(ctx context.Context, event Event) error {
		labelled.Add(1)
		wg.Done()
		return nil
	})

	wg.Add(2)
	bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil))
	bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout")
	}

	if classified.Load() != 2 {
		t.Errorf("classified handler received %d events, want 2", classified.Load())
	}
	if labelled.Load() != 0 {
		t.Errorf("labelled handler received %d events, want 0", labelled.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	// Publishing with no subscribers should not error
	err := bus.Publish(context.Background(), NewEvent("test", EventModelPulled, nil))
	if err != nil {
		t.Errorf("Publish() with no subscribers error = %v", err)
	}
}

func TestMemoryBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var wg sync.WaitGroup
	bus.Subscribe(context.Background(), EventDatasetCleaned, func(ctx context.Context, event Event) error {
		defer wg.Done()
		return errors.New("handler boom")
	})

	wg.Add(1)
	if err := bus.Publish(context.Background(), NewEvent("test", EventDatasetCleaned, nil)); err != nil {
		t.Errorf("Publish() error = %v, want nil despite handler failure", err)
	}
	wg.Wait()
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Operations should fail after close
	err := bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil))
	if err == nil {
		t.Error("Publish() after Close() should error")
	}

	err = bus.Subscribe(context.Background(), EventReviewClassified, func(ctx context.Context, event Event) error {
		return nil
	})
	if err == nil {
		t.Error("Subscribe() after Close() should error")
	}

	// Second close is a no-op
	if err := bus.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestMemoryBus_Concurrent(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), EventReviewClassified, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	numPublishers := 10
	eventsPerPublisher := 100
	wg.Add(numPublishers * eventsPerPublisher)

	for p := 0; p < numPublishers; p++ {
		go func() {
			for i := 0; i < eventsPerPublisher; i++ {
				bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout: received %d events, expected %d", received.Load(), numPublishers*eventsPerPublisher)
	}

	expected := int32(numPublishers * eventsPerPublisher)
	if got := received.Load(); got != expected {
		t.Errorf("Received %d events, want %d", got, expected)
	}
}

type recordedPublish struct {
	eventType string
	latencyMs int64
	err       error
}

type fakeRecorder struct {
	mu        sync.Mutex
	publishes []recordedPublish
}

func (r *fakeRecorder) RecordBusPublish(eventType string, latencyMs int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, recordedPublish{eventType, latencyMs, err})
}

func TestInstrumentedBus_RecordsPublish(t *testing.T) {
	inner := NewMemoryBus()
	recorder := &fakeRecorder{}
	bus := NewInstrumentedBus(inner, recorder)
	defer bus.Close()

	if err := bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.publishes) != 1 {
		t.Fatalf("Recorded %d publishes, want 1", len(recorder.publishes))
	}
	if recorder.publishes[0].eventType != EventReviewClassified {
		t.Errorf("Recorded event type = %s, want %s", recorder.publishes[0].eventType, EventReviewClassified)
	}
	if recorder.publishes[0].err != nil {
		t.Errorf("Recorded error = %v, want nil", recorder.publishes[0].err)
	}
}

func TestInstrumentedBus_RecordsFailure(t *testing.T) {
	inner := NewMemoryBus()
	inner.Close() // Publishing to a closed bus fails

	recorder := &fakeRecorder{}
	bus := NewInstrumentedBus(inner, recorder)

	if err := bus.Publish(context.Background(), NewEvent("test", EventReviewClassified, nil)); err == nil {
		t.Fatal("Publish() on closed bus should error")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.publishes) != 1 {
		t.Fatalf("Recorded %d publishes, want 1", len(recorder.publishes))
	}
	if recorder.publishes[0].err == nil {
		t.Error("Recorded error = nil, want non-nil")
	}
}

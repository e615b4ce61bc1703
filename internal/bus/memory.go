package bus

import (
	"context"
	"sync"
	"time"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// MemoryBus is an in-memory event bus using goroutine fan-out. It is the
// default backend for single-process deployments.
type MemoryBus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	closed     bool
	log        *logger.Logger
	inflightWg sync.WaitGroup // Tracks in-flight handlers for graceful shutdown
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		log:      logger.Default().WithComponent("bus"),
	}
}

// Publish delivers an event to all subscribers of its type. Handlers run
// in their own goroutines; a handler error is logged and never fails the
// publish.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	handlers, ok := b.handlers[event.Type]
	if !ok || len(handlers) == 0 {
		return nil // No subscribers, not an error
	}

	for _, handler := range handlers {
		b.inflightWg.Add(1)
		go func(h Handler) {
			defer b.inflightWg.Done()
			if err := h(ctx, event); err != nil {
				b.log.Warn("Event handler failed",
					"event_type", event.Type,
					"event_id", event.ID,
					"error", err.Error(),
				)
			}
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for events of the given type.
func (b *MemoryBus) Subscribe(ctx context.Context, eventType string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Close closes the bus, waiting for in-flight handlers to complete.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if !b.DrainTimeout(10 * time.Second) {
		b.log.Warn("Event drain timeout reached, some handlers may not have completed")
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()

	return nil
}

// DrainTimeout waits for in-flight handlers to complete, up to timeout.
// Returns false if the timeout expired first.
func (b *MemoryBus) DrainTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflightWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

package bus

import (
	"context"
	"time"
)

// MetricsRecorder is an interface for recording bus metrics.
// This avoids import cycles with the metrics package.
type MetricsRecorder interface {
	RecordBusPublish(eventType string, latencyMs int64, err error)
}

// InstrumentedBus wraps a Bus implementation with metrics instrumentation.
type InstrumentedBus struct {
	inner   Bus
	metrics MetricsRecorder
}

// NewInstrumentedBus creates a new instrumented bus that records metrics.
func NewInstrumentedBus(inner Bus, metrics MetricsRecorder) *InstrumentedBus {
	return &InstrumentedBus{
		inner:   inner,
		metrics: metrics,
	}
}

// Publish publishes an event and records publish latency and outcome.
func (b *InstrumentedBus) Publish(ctx context.Context, event Event) error {
	start := time.Now()
	err := b.inner.Publish(ctx, event)
	latencyMs := time.Since(start).Milliseconds()

	if b.metrics != nil {
		b.metrics.RecordBusPublish(event.Type, latencyMs, err)
	}

	return err
}

// Subscribe subscribes to events of the given type.
func (b *InstrumentedBus) Subscribe(ctx context.Context, eventType string, handler Handler) error {
	return b.inner.Subscribe(ctx, eventType, handler)
}

// Close closes the underlying bus.
func (b *InstrumentedBus) Close() error {
	return b.inner.Close()
}

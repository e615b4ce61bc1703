package bus

import (
	"context"

	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// LoggedBus wraps another Bus implementation and appends every published
// event to an on-disk event log before delivery.
type LoggedBus struct {
	inner       Bus
	eventLogger *EventLogger
	log         *logger.Logger
}

// NewLoggedBus creates a new logged bus that wraps an inner bus.
func NewLoggedBus(inner Bus, eventLogger *EventLogger, log *logger.Logger) *LoggedBus {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedBus{
		inner:       inner,
		eventLogger: eventLogger,
		log:         log.WithComponent("bus"),
	}
}

// Publish logs the event and then delegates to the inner bus. Logging is
// best-effort; a log failure never fails the publish.
func (b *LoggedBus) Publish(ctx context.Context, event Event) error {
	if err := b.eventLogger.Log(event); err != nil {
		b.log.Warn("Failed to log event to disk",
			"event_type", event.Type,
			"error", err.Error(),
		)
	}

	return b.inner.Publish(ctx, event)
}

// Subscribe delegates to the inner bus.
func (b *LoggedBus) Subscribe(ctx context.Context, eventType string, handler Handler) error {
	return b.inner.Subscribe(ctx, eventType, handler)
}

// Close closes both the event logger and the inner bus.
func (b *LoggedBus) Close() error {
	if err := b.eventLogger.Close(); err != nil {
		b.log.Warn("Failed to close event logger", "error", err.Error())
	}

	return b.inner.Close()
}

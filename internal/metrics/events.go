package metrics

import (
	"context"

	"github.com/reviewsift/review-sift/internal/bus"
)

// EventSubscriber updates metrics from bus events. Components publish
// domain events and the subscriber folds them into counters, so the
// same pipeline serves in-process and Kafka deployments.
type EventSubscriber struct {
	metrics *Metrics
	bus     bus.Bus
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber(metrics *Metrics, eventBus bus.Bus) *EventSubscriber {
	return &EventSubscriber{
		metrics: metrics,
		bus:     eventBus,
	}
}

// SubscribeAll subscribes to every event type the application publishes.
func (es *EventSubscriber) SubscribeAll(ctx context.Context) error {
	subscriptions := []struct {
		eventType string
		handler   bus.Handler
	}{
		{bus.EventReviewClassified, es.handleReviewClassified},
		{bus.EventEvaluationCompleted, es.handleEvaluationCompleted},
		{bus.EventDatasetLabelled, es.handleDatasetLabelled},
		{bus.EventDatasetCleaned, es.handleDatasetCleaned},
		{bus.EventModelPulled, es.handleModelPulled},
	}

	for _, sub := range subscriptions {
		if err := es.bus.Subscribe(ctx, sub.eventType, sub.handler); err != nil {
			return err
		}
	}
	return nil
}

// Event handlers. Payloads arrive as typed structs from the in-memory
// bus and as decoded JSON maps from Kafka, so each handler accepts both.

func (es *EventSubscriber) handleReviewClassified(ctx context.Context, event bus.Event) error {
	switch p := event.Payload.(type) {
	case bus.ClassifiedPayload:
		es.metrics.RecordClassify(p.Label, p.Confidence, p.DurationMs, nil)
	case *bus.ClassifiedPayload:
		es.metrics.RecordClassify(p.Label, p.Confidence, p.DurationMs, nil)
	case map[string]interface{}:
		es.metrics.RecordClassify(stringField(p, "label"), floatField(p, "confidence"), intField(p, "duration_ms"), nil)
	}
	return nil
}

func (es *EventSubscriber) handleEvaluationCompleted(ctx context.Context, event bus.Event) error {
	switch p := event.Payload.(type) {
	case bus.EvaluationCompletedPayload:
		es.metrics.RecordEvaluation(p.Rows, p.Rows-p.Scored, p.Accuracy, p.DurationMs)
	case *bus.EvaluationCompletedPayload:
		es.metrics.RecordEvaluation(p.Rows, p.Rows-p.Scored, p.Accuracy, p.DurationMs)
	case map[string]interface{}:
		rows := int(intField(p, "rows"))
		scored := int(intField(p, "scored"))
		es.metrics.RecordEvaluation(rows, rows-scored, floatField(p, "accuracy"), intField(p, "duration_ms"))
	}
	return nil
}

func (es *EventSubscriber) handleDatasetLabelled(ctx context.Context, event bus.Event) error {
	switch p := event.Payload.(type) {
	case bus.DatasetLabelledPayload:
		es.metrics.RecordDatasetLabelled(p.Rows, p.Counts)
	case *bus.DatasetLabelledPayload:
		es.metrics.RecordDatasetLabelled(p.Rows, p.Counts)
	case map[string]interface{}:
		counts := make(map[string]int)
		if raw, ok := p["counts"].(map[string]interface{}); ok {
			for label, v := range raw {
				counts[label] = int(coerceFloat(v))
			}
		}
		es.metrics.RecordDatasetLabelled(int(intField(p, "rows")), counts)
	}
	return nil
}

func (es *EventSubscriber) handleDatasetCleaned(ctx context.Context, event bus.Event) error {
	switch p := event.Payload.(type) {
	case bus.DatasetCleanedPayload:
		es.metrics.RecordDatasetCleaned(p.Dropped)
	case *bus.DatasetCleanedPayload:
		es.metrics.RecordDatasetCleaned(p.Dropped)
	case map[string]interface{}:
		es.metrics.RecordDatasetCleaned(int(intField(p, "dropped")))
	}
	return nil
}

func (es *EventSubscriber) handleModelPulled(ctx context.Context, event bus.Event) error {
	switch p := event.Payload.(type) {
	case bus.ModelPulledPayload:
		es.metrics.RecordModelPull(p.Bytes)
	case *bus.ModelPulledPayload:
		es.metrics.RecordModelPull(p.Bytes)
	case map[string]interface{}:
		es.metrics.RecordModelPull(intField(p, "bytes"))
	}
	return nil
}

// Payload field helpers.

// coerceFloat converts a decoded payload value to float64. JSON
// decoding yields float64; in-process maps may carry int values.
func coerceFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	return coerceFloat(m[key])
}

func intField(m map[string]interface{}, key string) int64 {
	return int64(coerceFloat(m[key]))
}

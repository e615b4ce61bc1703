package main

import (
	"context"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/evaluation"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

// publishEvent fans a pipeline event out on the configured bus. Commands
// build a short-lived bus per invocation; on the default in-memory bus
// this is a no-op, with Kafka configured the event reaches the shared
// pipeline. Publish failures are logged, never fatal.
func publishEvent(ctx context.Context, cfg config.BusConfig, log *logger.Logger, event bus.Event) {
	eventBus, err := bus.NewBus(cfg)
	if err != nil {
		log.Warn("failed to create event bus", "error", err)
		return
	}
	defer eventBus.Close()

	if err := eventBus.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}

// evaluationCompletedEvent builds the event announcing a finished
// evaluation run.
func evaluationCompletedEvent(report *evaluation.EvaluationReport) bus.Event {
	return bus.NewEvent("cli", bus.EventEvaluationCompleted, bus.EvaluationCompletedPayload{
		ReportID:   report.ID,
		Model:      report.Model,
		Dataset:    report.Dataset,
		Rows:       report.Rows,
		Scored:     report.Scored,
		Accuracy:   report.Accuracy,
		DurationMs: report.Duration.Milliseconds(),
	})
}

// datasetCleanedEvent builds the event announcing a cleaned review dump.
func datasetCleanedEvent(input, output string, stats *dataset.CleanStats) bus.Event {
	return bus.NewEvent("cli", bus.EventDatasetCleaned, bus.DatasetCleanedPayload{
		Input:   input,
		Output:  output,
		RowsIn:  stats.RowsIn,
		RowsOut: stats.RowsOut,
		Dropped: stats.Dropped,
	})
}

package evaluation

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/review"
	textproc "github.com/reviewsift/review-sift/internal/text"
)

// Classifier is the inference surface the runner drives.
// *classifier.Engine satisfies it.
type Classifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([]*review.PredictionResult, error)
	ModelName() string
}

const (
	defaultBatchSize = 16
	defaultWorkers   = 4
	snippetLen       = 80
)

// Options configures a dataset evaluation run.
type Options struct {
	// Dataset is the dataset path or name recorded in the report.
	Dataset string

	// BatchSize is the number of rows per inference call.
	BatchSize int

	// Workers is the number of concurrent evaluation workers.
	Workers int

	// OnProgress, when set, is called after each processed batch with
	// the number of rows handled so far. Called from worker goroutines.
	OnProgress func(done, total int)
}

// Runner applies the classifier across a labeled dataset and folds the
// outcomes into an EvaluationReport. Rows are independent, so batches
// fan out to workers; each worker fills its own partial report and the
// partials merge once all workers finish.
type Runner struct {
	engine Classifier
	log    *logger.Logger
	opts   Options
}

// NewRunner creates a runner. Zero option values fall back to defaults.
func NewRunner(engine Classifier, log *logger.Logger, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Runner{
		engine: engine,
		log:    log.WithComponent("evaluation"),
		opts:   opts,
	}
}

// candidate is a row that survived preprocessing and label parsing.
type candidate struct {
	index int
	text  string
	label review.Label
}

// partial is one worker's share of the report. Workers never touch a
// shared matrix; partials merge after the group finishes.
type partial struct {
	confusion Confusion
	scored    int
	unscored  []UnscoredRow
}

func (p *partial) merge(other *partial) {
	p.confusion.Merge(&other.confusion)
	p.scored += other.scored
	p.unscored = append(p.unscored, other.unscored...)
}

// Run evaluates every row and returns the report. Per-row failures
// (empty text, unparseable label, inference error) are recorded as
// unscored and never abort the run; Run fails only on cancellation.
func (r *Runner) Run(ctx context.Context, rows []dataset.Row) (*EvaluationReport, error) {
	start := time.Now()

	var seed partial
	var candidates []candidate
	for _, row := range rows {
		if row.Malformed {
			seed.unscored = append(seed.unscored, UnscoredRow{Index: row.Index, Reason: "malformed CSV record"})
			continue
		}

		cleaned, empty := textproc.Clean(row.Text)
		if empty {
			seed.unscored = append(seed.unscored, UnscoredRow{Index: row.Index, Reason: "empty text"})
			continue
		}

		label, err := review.ParseLabel(row.RawLabel)
		if err != nil {
			seed.unscored = append(seed.unscored, UnscoredRow{
				Index:  row.Index,
				Text:   snippet(cleaned),
				Reason: fmt.Sprintf("unparseable label %q", row.RawLabel),
			})
			continue
		}

		candidates = append(candidates, candidate{index: row.Index, text: cleaned, label: label})
	}

	total := len(rows)
	var done atomic.Int64
	progress := func(n int) {
		if r.opts.OnProgress == nil {
			return
		}
		r.opts.OnProgress(int(done.Add(int64(n))), total)
	}
	progress(len(seed.unscored))

	batches := splitBatches(candidates, r.opts.BatchSize)
	workers := r.opts.Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	partials := make([]partial, workers)
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan []candidate)

	for w := 0; w < workers; w++ {
		p := &partials[w]
		g.Go(func() error {
			for batch := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.evalBatch(gctx, batch, p)
				progress(len(batch))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, batch := range batches {
			select {
			case jobs <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := seed
	for i := range partials {
		final.merge(&partials[i])
	}
	sort.Slice(final.unscored, func(i, j int) bool {
		return final.unscored[i].Index < final.unscored[j].Index
	})

	report := r.buildReport(total, &final, time.Since(start))
	r.log.Info("evaluation complete",
		"dataset", r.opts.Dataset,
		"rows", report.Rows,
		"scored", report.Scored,
		"unscored", len(report.Unscored),
		"accuracy", report.Accuracy,
	)
	return report, nil
}

// evalBatch classifies one batch and folds the outcome into the
// worker's partial report. A failed inference call marks every row of
// the batch unscored and the run continues.
func (r *Runner) evalBatch(ctx context.Context, batch []candidate, p *partial) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.text
	}

	results, err := r.engine.ClassifyBatch(ctx, texts)
	if err != nil {
		reason := failureReason(err)
		for _, c := range batch {
			p.unscored = append(p.unscored, UnscoredRow{Index: c.index, Text: snippet(c.text), Reason: reason})
		}
		r.log.Warn("batch unscored", "rows", len(batch), "reason", reason)
		return
	}

	for i, c := range batch {
		p.confusion.Add(c.label, results[i].Label)
		p.scored++
	}
}

func (r *Runner) buildReport(rows int, p *partial, elapsed time.Duration) *EvaluationReport {
	classes := ClassSummary(&p.confusion)
	unscored := p.unscored
	if unscored == nil {
		unscored = []UnscoredRow{}
	}

	return &EvaluationReport{
		ID:             uuid.NewString(),
		Model:          r.engine.ModelName(),
		Dataset:        r.opts.Dataset,
		GeneratedAt:    time.Now().UTC(),
		Rows:           rows,
		Scored:         p.scored,
		Confusion:      p.confusion,
		Accuracy:       Accuracy(&p.confusion),
		Classes:        classes,
		MacroAvg:       MacroAverage(classes),
		WeightedAvg:    WeightedAverage(classes),
		Unscored:       unscored,
		ElapsedSeconds: elapsed.Seconds(),
		Duration:       elapsed,
	}
}

func splitBatches(rows []candidate, size int) [][]candidate {
	if len(rows) == 0 {
		return nil
	}
	batches := make([][]candidate, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}

// failureReason condenses an inference failure into a reason string for
// the unscored listing.
func failureReason(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}

// snippet truncates row text for the unscored listing.
func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLen {
		return s
	}
	return string(runes[:snippetLen]) + "..."
}

package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/review"
	textproc "github.com/reviewsift/review-sift/internal/text"
)

// Classifier is the inference surface the labeler drives.
// *classifier.Engine satisfies it.
type Classifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([]*review.PredictionResult, error)
	ModelName() string
}

// LabelResult is the outcome of labelling an uploaded dataset.
type LabelResult struct {
	// Filename is the download name, "<base>_labelled.csv".
	Filename string `json:"filename"`

	Total    int `json:"total"`
	Labelled int `json:"labelled"`

	// Counts maps canonical label names to row counts. Every label is
	// present, zero counts included.
	Counts map[string]int `json:"counts"`

	// CSV is the original data plus category and category_name columns.
	CSV []byte `json:"-"`
}

// LabelOptions tune how a labelling run drives inference. Zero values
// classify everything in one batch on a single worker.
type LabelOptions struct {
	// BatchSize is the row count per inference call.
	BatchSize int

	// Workers is how many batches run concurrently.
	Workers int
}

// Labeler classifies every row of an uploaded CSV, preserving the
// original columns and row order.
type Labeler struct {
	engine Classifier
	log    *logger.Logger
}

// NewLabeler creates a labeler.
func NewLabeler(engine Classifier, log *logger.Logger) *Labeler {
	return &Labeler{engine: engine, log: log.WithComponent("labeler")}
}

// ModelName reports the model the labeler classifies with.
func (l *Labeler) ModelName() string {
	return l.engine.ModelName()
}

// LabelCSV classifies the rows of an uploaded CSV. Rows whose text is
// empty after preprocessing keep empty category cells and are not
// counted. The upload decodes as UTF-8 with a Latin-1 fallback, like
// the evaluation reader.
func (l *Labeler) LabelCSV(ctx context.Context, filename string, data []byte, textColumn string, opts LabelOptions) (*LabelResult, error) {
	content, err := decodeText(data)
	if err != nil {
		return nil, errors.ValidationError("cannot decode uploaded CSV")
	}

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.ValidationError("uploaded CSV has no header row")
	}
	textIdx := columnIndex(header, textColumn)
	if textIdx < 0 {
		return nil, errors.ValidationError(fmt.Sprintf("CSV must contain a %q column", textColumn))
	}

	var records [][]string
	for i := 1; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("row %d: malformed CSV", i))
		}
		records = append(records, record)
	}

	// Clean first, then classify all non-empty rows in one batched call.
	texts := make([]string, 0, len(records))
	indices := make([]int, 0, len(records))
	for i, record := range records {
		raw := ""
		if textIdx < len(record) {
			raw = record[textIdx]
		}
		cleaned, empty := textproc.Clean(raw)
		if empty {
			continue
		}
		texts = append(texts, cleaned)
		indices = append(indices, i)
	}

	labels := make([]review.Label, len(records))
	scored := make([]bool, len(records))
	if len(texts) > 0 {
		results, err := l.classifyChunked(ctx, texts, opts)
		if err != nil {
			return nil, err
		}
		for k, idx := range indices {
			labels[idx] = results[k].Label
			scored[idx] = true
		}
	}

	counts := make(map[string]int, review.NumLabels)
	for _, lab := range review.AllLabels() {
		counts[lab.String()] = 0
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	outHeader := append(append(make([]string, 0, len(header)+2), header...), "category", "category_name")
	if err := w.Write(outHeader); err != nil {
		return nil, errors.InternalError("writing CSV header", err)
	}

	labelled := 0
	for i, record := range records {
		width := len(header)
		if len(record) > width {
			// FieldsPerRecord is -1, so ragged rows parse; keep every cell.
			width = len(record)
		}
		row := make([]string, width, width+2)
		copy(row, record)
		if scored[i] {
			lab := labels[i]
			row = append(row, strconv.Itoa(lab.Index()), lab.String())
			counts[lab.String()]++
			labelled++
		} else {
			row = append(row, "", "")
		}
		if err := w.Write(row); err != nil {
			return nil, errors.InternalError("writing CSV row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.InternalError("flushing CSV", err)
	}

	result := &LabelResult{
		Filename: labelledFilename(filename),
		Total:    len(records),
		Labelled: labelled,
		Counts:   counts,
		CSV:      buf.Bytes(),
	}
	l.log.Info("dataset labelled", "file", result.Filename, "rows", result.Total, "labelled", result.Labelled)
	return result, nil
}

// classifyChunked splits the texts into batches and classifies them with
// bounded concurrency. Result order matches the input order.
func (l *Labeler) classifyChunked(ctx context.Context, texts []string, opts LabelOptions) ([]*review.PredictionResult, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = len(texts)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*review.PredictionResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			out, err := l.engine.ClassifyBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(results[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// labelledFilename derives the download name from the uploaded one.
func labelledFilename(uploaded string) string {
	base := filepath.Base(uploaded)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "reviews"
	}
	return base + "_labelled.csv"
}

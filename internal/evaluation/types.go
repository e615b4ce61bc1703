// Package evaluation applies the classifier across labeled datasets and
// computes aggregate classification metrics.
package evaluation

import (
	"time"

	"github.com/reviewsift/review-sift/internal/review"
)

// Confusion is a square count matrix indexed [actual][predicted].
type Confusion [review.NumLabels][review.NumLabels]int

// Add records one scored row.
func (c *Confusion) Add(actual, predicted review.Label) {
	c[actual][predicted]++
}

// Merge adds another matrix's counts into this one.
func (c *Confusion) Merge(other *Confusion) {
	for i := range c {
		for j := range c[i] {
			c[i][j] += other[i][j]
		}
	}
}

// Total returns the number of scored rows.
func (c *Confusion) Total() int {
	n := 0
	for i := range c {
		for j := range c[i] {
			n += c[i][j]
		}
	}
	return n
}

// Correct returns the number of rows on the diagonal.
func (c *Confusion) Correct() int {
	n := 0
	for i := range c {
		n += c[i][i]
	}
	return n
}

// Support returns the number of rows whose actual label is l.
func (c *Confusion) Support(l review.Label) int {
	n := 0
	for j := range c[l] {
		n += c[l][j]
	}
	return n
}

// Predicted returns the number of rows predicted as l.
func (c *Confusion) Predicted(l review.Label) int {
	n := 0
	for i := range c {
		n += c[i][l]
	}
	return n
}

// ClassMetrics holds precision, recall, and F1 for a single class.
type ClassMetrics struct {
	Label     review.Label `json:"label"`
	Precision float64      `json:"precision"`
	Recall    float64      `json:"recall"`
	F1        float64      `json:"f1"`
	Support   int          `json:"support"`

	// Undefined is set when the class has zero predicted or zero actual
	// instances; the affected metrics report 0 instead of dividing by
	// zero.
	Undefined bool `json:"undefined,omitempty"`
}

// Averages holds precision, recall, and F1 averaged across classes.
type Averages struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// UnscoredRow records a dataset row that could not be classified and
// the reason it was excluded from metric computation.
type UnscoredRow struct {
	Index  int    `json:"index"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason"`
}

// EvaluationReport aggregates prediction results against ground truth
// for one dataset run. Immutable after computation.
type EvaluationReport struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Dataset     string    `json:"dataset"`
	GeneratedAt time.Time `json:"generated_at"`

	Rows   int `json:"rows"`
	Scored int `json:"scored"`

	Confusion   Confusion                      `json:"confusion"`
	Accuracy    float64                        `json:"accuracy"`
	Classes     [review.NumLabels]ClassMetrics `json:"classes"`
	MacroAvg    Averages                       `json:"macro_avg"`
	WeightedAvg Averages                       `json:"weighted_avg"`

	Unscored []UnscoredRow `json:"unscored"`

	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Duration       time.Duration `json:"-"`
}

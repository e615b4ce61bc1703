package review

import (
	"fmt"
	"math"
	"time"
)

// Review is a single review text plus optional source metadata. Reviews
// are immutable once ingested.
type Review struct {
	Text       string `json:"text"`
	LocationID string `json:"location_id,omitempty"`
}

// ConfidenceTolerance is the floating-point tolerance used when checking
// that a confidence distribution sums to 1.
const ConfidenceTolerance = 1e-6

// PredictionResult pairs a review with a predicted label and the full
// confidence distribution over all labels. Confidences are non-negative
// and sum to 1 within ConfidenceTolerance.
type PredictionResult struct {
	Text        string             `json:"text"`
	Label       Label              `json:"label"`
	Confidences [NumLabels]float64 `json:"confidences"`
	Model       string             `json:"model,omitempty"`
	Cached      bool               `json:"cached,omitempty"`
	Duration    time.Duration      `json:"-"`
}

// Confidence returns the probability assigned to the predicted label.
func (p *PredictionResult) Confidence() float64 {
	return p.Confidences[p.Label]
}

// ConfidenceFor returns the probability assigned to a specific label.
func (p *PredictionResult) ConfidenceFor(l Label) float64 {
	if !l.Valid() {
		return 0
	}
	return p.Confidences[l]
}

// Validate checks the distribution invariants: a valid predicted label,
// non-negative confidences, and a total of 1 within tolerance.
func (p *PredictionResult) Validate() error {
	if !p.Label.Valid() {
		return fmt.Errorf("invalid predicted label %d", int(p.Label))
	}

	sum := 0.0
	for i, c := range p.Confidences {
		if c < 0 {
			return fmt.Errorf("confidence for %s is negative: %f", Label(i), c)
		}
		sum += c
	}

	if math.Abs(sum-1.0) > ConfidenceTolerance {
		return fmt.Errorf("confidences sum to %f, want 1.0", sum)
	}

	return nil
}

// ConfidenceMap returns the distribution keyed by canonical label name,
// for JSON responses.
func (p *PredictionResult) ConfidenceMap() map[string]float64 {
	m := make(map[string]float64, NumLabels)
	for _, l := range AllLabels() {
		m[l.String()] = p.Confidences[l]
	}
	return m
}

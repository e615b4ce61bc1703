package evaluation

import (
	"github.com/reviewsift/review-sift/internal/review"
)

// Precision calculates TP/(TP+FP) for one class. ok is false when the
// class was never predicted.
func Precision(c *Confusion, l review.Label) (float64, bool) {
	predicted := c.Predicted(l)
	if predicted == 0 {
		return 0, false
	}
	return float64(c[l][l]) / float64(predicted), true
}

// Recall calculates TP/(TP+FN) for one class. ok is false when the
// class has no actual instances.
func Recall(c *Confusion, l review.Label) (float64, bool) {
	support := c.Support(l)
	if support == 0 {
		return 0, false
	}
	return float64(c[l][l]) / float64(support), true
}

// F1 calculates the harmonic mean of precision and recall.
func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// Accuracy calculates the fraction of scored rows classified correctly.
func Accuracy(c *Confusion) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Correct()) / float64(total)
}

// ClassSummary calculates per-class metrics for every label. Classes
// with zero predicted or zero actual instances report 0 with the
// Undefined flag set.
func ClassSummary(c *Confusion) [review.NumLabels]ClassMetrics {
	var out [review.NumLabels]ClassMetrics
	for _, l := range review.AllLabels() {
		p, pOK := Precision(c, l)
		r, rOK := Recall(c, l)
		out[l] = ClassMetrics{
			Label:     l,
			Precision: p,
			Recall:    r,
			F1:        F1(p, r),
			Support:   c.Support(l),
			Undefined: !pOK || !rOK,
		}
	}
	return out
}

// MacroAverage calculates the unweighted mean of per-class metrics.
func MacroAverage(classes [review.NumLabels]ClassMetrics) Averages {
	var avg Averages
	for _, m := range classes {
		avg.Precision += m.Precision
		avg.Recall += m.Recall
		avg.F1 += m.F1
	}
	avg.Precision /= review.NumLabels
	avg.Recall /= review.NumLabels
	avg.F1 /= review.NumLabels
	return avg
}

// WeightedAverage calculates the support-weighted mean of per-class
// metrics. Zero total support yields zeros.
func WeightedAverage(classes [review.NumLabels]ClassMetrics) Averages {
	total := 0
	for _, m := range classes {
		total += m.Support
	}
	if total == 0 {
		return Averages{}
	}

	var avg Averages
	for _, m := range classes {
		w := float64(m.Support) / float64(total)
		avg.Precision += m.Precision * w
		avg.Recall += m.Recall * w
		avg.F1 += m.F1 * w
	}
	return avg
}

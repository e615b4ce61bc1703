package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reviewsift/review-sift/internal/review"
)

// Text renders the report in the classic classification-report layout:
// one row per class with four decimal places, accuracy, macro and
// weighted averages, then the confusion matrix and the unscored rows.
func (r *EvaluationReport) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "model:   %s\n", r.Model)
	if r.Dataset != "" {
		fmt.Fprintf(&b, "dataset: %s\n", r.Dataset)
	}
	fmt.Fprintf(&b, "rows:    %d (scored %d, unscored %d)\n\n", r.Rows, r.Scored, len(r.Unscored))

	width := nameWidth()
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%*s  %9.4f %9.4f %9.4f %9d\n",
			width, m.Label.DisplayName(), m.Precision, m.Recall, m.F1, m.Support)
	}

	b.WriteByte('\n')
	fmt.Fprintf(&b, "%*s  %9s %9s %9.4f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Scored)
	fmt.Fprintf(&b, "%*s  %9.4f %9.4f %9.4f %9d\n",
		width, "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.Scored)
	fmt.Fprintf(&b, "%*s  %9.4f %9.4f %9.4f %9d\n",
		width, "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.Scored)

	if names := undefinedNames(r.Classes); len(names) > 0 {
		fmt.Fprintf(&b, "\nzero-division: %s reported as 0 (no predicted or actual instances)\n",
			strings.Join(names, ", "))
	}

	b.WriteString("\nconfusion matrix (rows actual, columns predicted):\n")
	colWidth := 0
	for _, l := range review.AllLabels() {
		if n := len(l.String()); n > colWidth {
			colWidth = n
		}
	}
	fmt.Fprintf(&b, "%*s", width, "")
	for _, l := range review.AllLabels() {
		fmt.Fprintf(&b, "  %*s", colWidth, l.String())
	}
	b.WriteByte('\n')
	for _, actual := range review.AllLabels() {
		fmt.Fprintf(&b, "%*s", width, actual.String())
		for _, predicted := range review.AllLabels() {
			fmt.Fprintf(&b, "  %*d", colWidth, r.Confusion[actual][predicted])
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nunscored rows: %d\n", len(r.Unscored))
	for _, u := range r.Unscored {
		if u.Text != "" {
			fmt.Fprintf(&b, "  row %d: %s (text: %q)\n", u.Index, u.Reason, u.Text)
		} else {
			fmt.Fprintf(&b, "  row %d: %s\n", u.Index, u.Reason)
		}
	}

	fmt.Fprintf(&b, "\nelapsed: %.2fs\n", r.ElapsedSeconds)
	return b.String()
}

// JSON renders the report as indented JSON.
func (r *EvaluationReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func nameWidth() int {
	width := len("weighted avg")
	for _, l := range review.AllLabels() {
		if n := len(l.DisplayName()); n > width {
			width = n
		}
	}
	return width
}

func undefinedNames(classes [review.NumLabels]ClassMetrics) []string {
	var names []string
	for _, m := range classes {
		if m.Undefined {
			names = append(names, m.Label.DisplayName())
		}
	}
	return names
}

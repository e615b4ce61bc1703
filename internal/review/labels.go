// Package review defines the core domain types: reviews, the fixed label
// set, and prediction results.
package review

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Label is one of the four fixed review categories. The integer value is
// the model's output index; the order is fixed at training time and must
// never be inferred dynamically.
type Label int

// The closed label set. Index order matches the fine-tuned model head.
const (
	LabelValid Label = iota
	LabelSpamAds
	LabelLowQuality
	LabelRantWithoutVisit
)

// NumLabels is the size of the label set.
const NumLabels = 4

var labelNames = [NumLabels]string{
	"Valid",
	"SpamAds",
	"LowQuality",
	"RantWithoutVisit",
}

var labelDisplayNames = [NumLabels]string{
	"Valid",
	"Spam/Ads",
	"Low Quality",
	"Rant Without Visit",
}

var labelDescriptions = [NumLabels]string{
	"A genuine review about the location, describing food, service, atmosphere, or experience.",
	"Contains promotional content, links, phone numbers, or marketing language like 'visit', 'discount', 'special offer', or talks about unrelated topics.",
	"Nonsense, repetitive, very short, or generic ('Good', 'Nice', 'Ok!!!').",
	"Reviewer complains or gives opinion but admits they never visited (e.g., 'Never been here but...').",
}

// String returns the canonical label name.
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// DisplayName returns the human-friendly name shown in reports and the UI.
func (l Label) DisplayName() string {
	if !l.Valid() {
		return l.String()
	}
	return labelDisplayNames[l]
}

// Description returns the one-line category description shown in the UI.
func (l Label) Description() string {
	if !l.Valid() {
		return ""
	}
	return labelDescriptions[l]
}

// Index returns the label's integer index.
func (l Label) Index() int {
	return int(l)
}

// Valid reports whether the label is a member of the closed set.
func (l Label) Valid() bool {
	return l >= 0 && l < NumLabels
}

// MarshalJSON encodes the label as its canonical name.
func (l Label) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid label %d", int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a label from its name or integer index.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseLabel(s)
		if perr != nil {
			return perr
		}
		*l = parsed
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("label must be a string or integer")
	}
	parsed, err := FromIndex(i)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// AllLabels returns the labels in index order.
func AllLabels() [NumLabels]Label {
	return [NumLabels]Label{LabelValid, LabelSpamAds, LabelLowQuality, LabelRantWithoutVisit}
}

// FromIndex converts an integer index to a Label.
func FromIndex(i int) (Label, error) {
	l := Label(i)
	if !l.Valid() {
		return 0, fmt.Errorf("label index %d out of range [0,%d)", i, NumLabels)
	}
	return l, nil
}

// ParseLabel parses a label from its canonical name, display name,
// hub-style tag (LABEL_0..LABEL_3), or integer index. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseLabel(s string) (Label, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty label")
	}

	// Integer index, as found in ground-truth CSV columns.
	if i, err := strconv.Atoi(trimmed); err == nil {
		return FromIndex(i)
	}

	folded := strings.ToLower(trimmed)

	// Hub checkpoints emit LABEL_<i> tags.
	if rest, ok := strings.CutPrefix(folded, "label_"); ok {
		if i, err := strconv.Atoi(rest); err == nil {
			return FromIndex(i)
		}
	}

	for _, l := range AllLabels() {
		if folded == strings.ToLower(labelNames[l]) || folded == strings.ToLower(labelDisplayNames[l]) {
			return l, nil
		}
	}

	// Common aliases seen in exported datasets.
	switch folded {
	case "spam", "ads", "spam/advertisement", "advertisement":
		return LabelSpamAds, nil
	case "lowquality", "low_quality":
		return LabelLowQuality, nil
	case "rant", "rantwithoutvisit", "rant_without_visit":
		return LabelRantWithoutVisit, nil
	}

	return 0, fmt.Errorf("unknown label %q", s)
}

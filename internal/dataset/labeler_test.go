package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/review"
)

// stubEngine predicts from a fixed text-to-label map, defaulting to
// Valid for unknown texts.
type stubEngine struct {
	byText map[string]review.Label
	fail   bool

	mu    sync.Mutex
	calls int
}

func (s *stubEngine) ClassifyBatch(ctx context.Context, texts []string) ([]*review.PredictionResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return nil, errors.InferenceError("session run failed", nil)
	}

	out := make([]*review.PredictionResult, len(texts))
	for i, text := range texts {
		label := review.LabelValid
		if l, ok := s.byText[text]; ok {
			label = l
		}
		var conf [review.NumLabels]float64
		conf[label] = 1
		out[i] = &review.PredictionResult{Text: text, Label: label, Confidences: conf}
	}
	return out, nil
}

func (s *stubEngine) ModelName() string { return "stub" }

func TestLabelCSV(t *testing.T) {
	stub := &stubEngine{byText: map[string]review.Label{
		"great food":        review.LabelValid,
		"buy followers now": review.LabelSpamAds,
		"ok":                review.LabelLowQuality,
	}}
	labeler := NewLabeler(stub, testLogger())

	data := []byte("id,text\n1,great food\n2,buy followers now\n3,\n4,ok\n")
	res, err := labeler.LabelCSV(context.Background(), "reviews.csv", data, "text", LabelOptions{})
	if err != nil {
		t.Fatalf("LabelCSV failed: %v", err)
	}

	if res.Filename != "reviews_labelled.csv" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.Total != 4 || res.Labelled != 3 {
		t.Errorf("total/labelled = %d/%d, want 4/3", res.Total, res.Labelled)
	}

	wantCounts := map[string]int{"Valid": 1, "SpamAds": 1, "LowQuality": 1, "RantWithoutVisit": 0}
	if !reflect.DeepEqual(res.Counts, wantCounts) {
		t.Errorf("counts = %v, want %v", res.Counts, wantCounts)
	}

	records, err := csv.NewReader(bytes.NewReader(res.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("labelled CSV does not parse: %v", err)
	}

	wantHeader := []string{"id", "text", "category", "category_name"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Errorf("header = %v, want %v", records[0], wantHeader)
	}
	if !reflect.DeepEqual(records[1], []string{"1", "great food", "0", "Valid"}) {
		t.Errorf("row 1 = %v", records[1])
	}
	if !reflect.DeepEqual(records[2], []string{"2", "buy followers now", "1", "SpamAds"}) {
		t.Errorf("row 2 = %v", records[2])
	}
	// Empty text keeps its row but gets no category.
	if !reflect.DeepEqual(records[3], []string{"3", "", "", ""}) {
		t.Errorf("row 3 = %v", records[3])
	}
	if !reflect.DeepEqual(records[4], []string{"4", "ok", "2", "LowQuality"}) {
		t.Errorf("row 4 = %v", records[4])
	}

	// All rows classify through a single batched call.
	if stub.calls != 1 {
		t.Errorf("engine calls = %d, want 1", stub.calls)
	}
}

func TestLabelCSVMissingTextColumn(t *testing.T) {
	labeler := NewLabeler(&stubEngine{}, testLogger())

	_, err := labeler.LabelCSV(context.Background(), "r.csv", []byte("id,body\n1,x\n"), "text", LabelOptions{})
	if err == nil {
		t.Fatal("expected error for missing text column")
	}
	if !errors.IsValidation(err) {
		t.Errorf("error = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), `"text"`) {
		t.Errorf("error should name the missing column: %v", err)
	}
}

func TestLabelCSVEngineFailure(t *testing.T) {
	labeler := NewLabeler(&stubEngine{fail: true}, testLogger())

	_, err := labeler.LabelCSV(context.Background(), "r.csv", []byte("text\nhello\n"), "text", LabelOptions{})
	if !errors.IsInference(err) {
		t.Errorf("error = %v, want inference error", err)
	}
}

func TestLabelCSVBatched(t *testing.T) {
	stub := &stubEngine{byText: map[string]review.Label{
		"spam one": review.LabelSpamAds,
		"spam two": review.LabelSpamAds,
	}}
	labeler := NewLabeler(stub, testLogger())

	data := []byte("text\nspam one\nfine a\nspam two\nfine b\nfine c\n")
	res, err := labeler.LabelCSV(context.Background(), "r.csv", data, "text", LabelOptions{BatchSize: 2, Workers: 2})
	if err != nil {
		t.Fatalf("LabelCSV failed: %v", err)
	}

	// 5 rows in batches of 2 takes 3 inference calls.
	if stub.calls != 3 {
		t.Errorf("engine calls = %d, want 3", stub.calls)
	}
	if res.Labelled != 5 {
		t.Errorf("labelled = %d, want 5", res.Labelled)
	}
	if res.Counts["SpamAds"] != 2 || res.Counts["Valid"] != 3 {
		t.Errorf("counts = %v", res.Counts)
	}

	// Row order survives concurrent batches.
	r := csv.NewReader(bytes.NewReader(res.CSV))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("labelled CSV does not parse: %v", err)
	}
	if !reflect.DeepEqual(records[1], []string{"spam one", "1", "SpamAds"}) {
		t.Errorf("row 1 = %v", records[1])
	}
	if !reflect.DeepEqual(records[3], []string{"spam two", "1", "SpamAds"}) {
		t.Errorf("row 3 = %v", records[3])
	}
	if !reflect.DeepEqual(records[5], []string{"fine c", "0", "Valid"}) {
		t.Errorf("row 5 = %v", records[5])
	}
}

func TestLabelCSVRaggedRows(t *testing.T) {
	stub := &stubEngine{byText: map[string]review.Label{"fine": review.LabelValid}}
	labeler := NewLabeler(stub, testLogger())

	// Row 1 carries an extra cell past the header; row 2 is short.
	data := []byte("id,text\n1,fine,extra\n2\n")
	res, err := labeler.LabelCSV(context.Background(), "r.csv", data, "text", LabelOptions{})
	if err != nil {
		t.Fatalf("LabelCSV failed: %v", err)
	}

	r := csv.NewReader(bytes.NewReader(res.CSV))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("labelled CSV does not parse: %v", err)
	}

	// Extra cells survive ahead of the appended category columns.
	if !reflect.DeepEqual(records[1], []string{"1", "fine", "extra", "0", "Valid"}) {
		t.Errorf("row 1 = %v", records[1])
	}
	// Short rows pad to header width before the category columns.
	if !reflect.DeepEqual(records[2], []string{"2", "", "", ""}) {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestLabelCSVLatin1(t *testing.T) {
	stub := &stubEngine{byText: map[string]review.Label{"café": review.LabelValid}}
	labeler := NewLabeler(stub, testLogger())

	res, err := labeler.LabelCSV(context.Background(), "r.csv", []byte("text\ncaf\xe9\n"), "text", LabelOptions{})
	if err != nil {
		t.Fatalf("LabelCSV failed: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(res.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("labelled CSV does not parse: %v", err)
	}
	if !reflect.DeepEqual(records[1], []string{"café", "0", "Valid"}) {
		t.Errorf("row = %v", records[1])
	}
}

func TestLabelCSVEmptyUpload(t *testing.T) {
	labeler := NewLabeler(&stubEngine{}, testLogger())

	res, err := labeler.LabelCSV(context.Background(), "r.csv", []byte("text\n"), "text", LabelOptions{})
	if err != nil {
		t.Fatalf("LabelCSV failed: %v", err)
	}
	if res.Total != 0 || res.Labelled != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestLabelledFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"reviews.csv", "reviews_labelled.csv"},
		{"path/to/data.csv", "data_labelled.csv"},
		{"no-extension", "no-extension_labelled.csv"},
		{"archive.tar.gz", "archive.tar_labelled.csv"},
		{".csv", "reviews_labelled.csv"},
	}

	for _, tt := range tests {
		if got := labelledFilename(tt.in); got != tt.want {
			t.Errorf("labelledFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

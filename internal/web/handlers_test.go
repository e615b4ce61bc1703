package web

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/review"
)

type fakeClassifier struct {
	label review.Label
	err   error
}

func (f *fakeClassifier) result(text string) *review.PredictionResult {
	var conf [review.NumLabels]float64
	conf[f.label] = 0.91
	rest := (1.0 - 0.91) / float64(review.NumLabels-1)
	for i := range conf {
		if review.Label(i) != f.label {
			conf[i] = rest
		}
	}
	return &review.PredictionResult{Text: text, Label: f.label, Confidences: conf, Model: "fake-model"}
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (*review.PredictionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result(text), nil
}

func (f *fakeClassifier) ClassifyBatch(_ context.Context, texts []string) ([]*review.PredictionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*review.PredictionResult, len(texts))
	for i, t := range texts {
		out[i] = f.result(t)
	}
	return out, nil
}

func (f *fakeClassifier) ModelName() string { return "fake-model" }

func newTestHandler(t *testing.T, fc *fakeClassifier) (*Handler, *http.ServeMux) {
	t.Helper()

	log := logger.New("error", "text")
	store, err := dataset.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	h := NewHandler(fc, dataset.NewLabeler(fc, log), store, log)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func TestIndexPage(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelValid})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fake-model") {
		t.Error("page missing model name")
	}
	for _, l := range review.AllLabels() {
		if !strings.Contains(body, l.DisplayName()) {
			t.Errorf("page missing label %s", l.DisplayName())
		}
	}
	if !strings.Contains(body, `hx-post="/web/classify"`) {
		t.Error("page missing classify form")
	}
}

func TestIndexPage_NotFoundElsewhere(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelValid})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestClassifyFragment(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelRantWithoutVisit})

	form := strings.NewReader("text=never+even+went+there+but+I+heard+it+is+awful")
	req := httptest.NewRequest(http.MethodPost, "/web/classify", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, review.LabelRantWithoutVisit.DisplayName()) {
		t.Error("fragment missing predicted label")
	}
	if !strings.Contains(body, "91.0%") {
		t.Errorf("fragment missing confidence: %s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("fragment rendered the full page")
	}
}

func TestClassifyFragment_EmptyText(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelValid})

	req := httptest.NewRequest(http.MethodPost, "/web/classify", strings.NewReader("text="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "error") {
		t.Error("expected error fragment for empty text")
	}
}

func TestLabelFragment(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelSpamAds})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "reviews.csv")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	fmt.Fprint(fw, "text\nvisit spam.example for deals\nmore spam here\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/web/label", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "reviews_labelled.csv") {
		t.Error("fragment missing output filename")
	}
	if !strings.Contains(body, "2 of 2 rows labelled") {
		t.Errorf("fragment missing row summary: %s", body)
	}
	if !strings.Contains(body, "/download") {
		t.Error("fragment missing download link")
	}
}

func TestLabelFragment_MissingFile(t *testing.T) {
	_, mux := newTestHandler(t, &fakeClassifier{label: review.LabelValid})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("text_col", "text")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/web/label", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "choose a CSV") {
		t.Error("expected error fragment for missing file")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatPct(0.975); got != "97.5%" {
		t.Errorf("formatPct = %q", got)
	}
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("formatBytes = %q", got)
	}
	if got := formatBytes(2 << 20); got != "2.0 MB" {
		t.Errorf("formatBytes = %q", got)
	}
	if got := labelTone("SpamAds"); got != "tone-bad" {
		t.Errorf("labelTone = %q", got)
	}
}

// Package web serves the interactive front-end: a single page with a
// classify box and a CSV upload form, updated with HTMX fragments.
package web

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/reviewsift/review-sift/internal/classifier"
	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/pkg/security"
	"github.com/reviewsift/review-sift/internal/review"
)

// Classifier is the inference surface the web handlers need.
// *classifier.Engine satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string) (*review.PredictionResult, error)
	ModelName() string
}

// Handler handles all web UI requests.
type Handler struct {
	engine  Classifier
	labeler *dataset.Labeler
	store   *dataset.Store
	tmpl    *template.Template
	log     *logger.Logger
}

// NewHandler creates a new web handler.
func NewHandler(engine Classifier, labeler *dataset.Labeler, store *dataset.Store, log *logger.Logger) *Handler {
	tmpl, err := parseTemplates()
	if err != nil {
		// Templates are embedded, so a parse failure is a build defect.
		panic(err)
	}
	return &Handler{
		engine:  engine,
		labeler: labeler,
		store:   store,
		tmpl:    tmpl,
		log:     log.WithComponent("web"),
	}
}

// RegisterRoutes registers all web routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /web/classify", h.handleClassify)
	mux.HandleFunc("POST /web/label", h.handleLabel)
}

// LabelView describes one label for the legend on the index page.
type LabelView struct {
	Name        string
	DisplayName string
	Description string
}

// IndexData is the data for the full page render.
type IndexData struct {
	Model    string
	Labels   []LabelView
	Datasets []*dataset.StoredDataset
}

// ConfidenceRow is one row of the per-label confidence table.
type ConfidenceRow struct {
	Name        string
	DisplayName string
	Confidence  float64
	Top         bool
}

// ClassifyView is the data for the classify result fragment.
type ClassifyView struct {
	Text        string
	Label       string
	DisplayName string
	Confidence  float64
	Rows        []ConfidenceRow
	Cached      bool
}

// UploadView is the data for the label result fragment.
type UploadView struct {
	Filename    string
	Total       int
	Labelled    int
	Counts      []CountRow
	DatasetID   string
	DownloadURL string
}

// CountRow is one label's row count in the upload summary.
type CountRow struct {
	Name  string
	Count int
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := IndexData{Model: h.engine.ModelName()}
	for _, l := range review.AllLabels() {
		data.Labels = append(data.Labels, LabelView{
			Name:        l.String(),
			DisplayName: l.DisplayName(),
			Description: l.Description(),
		})
	}
	if h.store != nil {
		if datasets, err := h.store.List(); err == nil {
			data.Datasets = datasets
		}
	}

	h.render(w, "index", data)
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, "invalid form data")
		return
	}

	text := strings.TrimSpace(r.FormValue("text"))
	if err := security.ValidateText(text); err != nil {
		h.renderError(w, err.Error())
		return
	}

	result, err := h.engine.Classify(r.Context(), text)
	if err != nil {
		if classifier.IsEmptyText(err) {
			h.renderError(w, "review text is empty after cleaning")
			return
		}
		h.log.Error("classification failed", "error", err)
		h.renderError(w, "classification failed, try again")
		return
	}

	view := ClassifyView{
		Text:        text,
		Label:       result.Label.String(),
		DisplayName: result.Label.DisplayName(),
		Confidence:  result.Confidence(),
		Cached:      result.Cached,
	}
	for _, l := range review.AllLabels() {
		view.Rows = append(view.Rows, ConfidenceRow{
			Name:        l.String(),
			DisplayName: l.DisplayName(),
			Confidence:  result.ConfidenceFor(l),
			Top:         l == result.Label,
		})
	}

	h.render(w, "classify_result", view)
}

func (h *Handler) handleLabel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.renderError(w, "invalid upload or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, "choose a CSV file first")
		return
	}
	defer file.Close()

	textColumn := r.FormValue("text_col")
	if textColumn == "" {
		textColumn = "text"
	}

	validator := security.LabelRequestValidator{
		Filename:   header.Filename,
		Size:       header.Size,
		TextColumn: textColumn,
	}
	if err := validator.Validate(); err != nil {
		h.renderError(w, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.renderError(w, "failed to read upload")
		return
	}

	result, err := h.labeler.LabelCSV(r.Context(), header.Filename, data, textColumn, dataset.LabelOptions{})
	if err != nil {
		h.renderError(w, err.Error())
		return
	}

	view := UploadView{
		Filename: result.Filename,
		Total:    result.Total,
		Labelled: result.Labelled,
	}
	for _, l := range review.AllLabels() {
		view.Counts = append(view.Counts, CountRow{Name: l.String(), Count: result.Counts[l.String()]})
	}

	if h.store != nil {
		if stored, err := h.store.Save(result, h.labeler.ModelName()); err == nil {
			view.DatasetID = stored.ID
			view.DownloadURL = "/v1/datasets/" + stored.ID + "/download"
		} else {
			h.log.Warn("failed to retain labelled dataset", "error", err)
		}
	}

	h.render(w, "label_result", view)
}

func (h *Handler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "error_message", msg); err != nil {
		h.log.Error("template render failed", "template", "error_message", "error", err)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/classifier"
	apperrors "github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/pkg/security"
	"github.com/reviewsift/review-sift/internal/review"
)

// ClassifyEngine is the inference surface the classify handler drives.
// *classifier.Engine satisfies it.
type ClassifyEngine interface {
	Classify(ctx context.Context, text string) (*review.PredictionResult, error)
	Health() classifier.HealthStatus
	ModelName() string
}

// ClassifyHandler serves single-review classification and label metadata.
type ClassifyHandler struct {
	engine   ClassifyEngine
	eventBus bus.Bus
	log      *logger.Logger
}

// NewClassifyHandler creates the classify handler.
func NewClassifyHandler(engine ClassifyEngine, eventBus bus.Bus, log *logger.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		engine:   engine,
		eventBus: eventBus,
		log:      log.WithComponent("classify"),
	}
}

// RegisterRoutes registers classification routes.
func (h *ClassifyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/classify", h.handleClassify)
	mux.HandleFunc("GET /v1/labels", h.handleLabels)
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is the body of a successful classification.
type ClassifyResponse struct {
	Label       string             `json:"label"`
	LabelIndex  int                `json:"label_index"`
	DisplayName string             `json:"display_name"`
	Confidences map[string]float64 `json:"confidences"`
	Model       string             `json:"model"`
	Cached      bool               `json:"cached"`
	DurationMs  int64              `json:"duration_ms"`
}

func (h *ClassifyHandler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	validator := security.ClassifyRequestValidator{Text: req.Text}
	if err := validator.Validate(); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	start := time.Now()
	result, err := h.engine.Classify(r.Context(), req.Text)
	if err != nil {
		if classifier.IsEmptyText(err) {
			apperrors.WriteError(w, apperrors.ValidationError("text is empty after preprocessing"))
			return
		}
		h.log.Error("classification failed", "error", err)
		apperrors.WriteError(w, err)
		return
	}
	durationMs := time.Since(start).Milliseconds()

	h.publishClassified(r.Context(), result, durationMs)

	writeJSON(w, http.StatusOK, ClassifyResponse{
		Label:       result.Label.String(),
		LabelIndex:  result.Label.Index(),
		DisplayName: result.Label.DisplayName(),
		Confidences: result.ConfidenceMap(),
		Model:       result.Model,
		Cached:      result.Cached,
		DurationMs:  durationMs,
	})
}

func (h *ClassifyHandler) publishClassified(ctx context.Context, result *review.PredictionResult, durationMs int64) {
	if h.eventBus == nil {
		return
	}

	event := bus.NewEvent("api", bus.EventReviewClassified, bus.ClassifiedPayload{
		Model:      result.Model,
		Label:      result.Label.String(),
		Confidence: result.Confidence(),
		Cached:     result.Cached,
		DurationMs: durationMs,
	})
	if err := h.eventBus.Publish(ctx, event); err != nil {
		h.log.Warn("failed to publish classification event", "error", err)
	}
}

// LabelInfo describes one of the four categories for API consumers.
type LabelInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *ClassifyHandler) handleLabels(w http.ResponseWriter, _ *http.Request) {
	labels := make([]LabelInfo, 0, review.NumLabels)
	for _, l := range review.AllLabels() {
		labels = append(labels, LabelInfo{
			Index:       l.Index(),
			Name:        l.String(),
			DisplayName: l.DisplayName(),
			Description: l.Description(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"labels": labels})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

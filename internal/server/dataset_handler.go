package server

import (
	"io"
	"net/http"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/dataset"
	apperrors "github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/pkg/security"
	"github.com/reviewsift/review-sift/internal/settings"
)

// DatasetHandler serves CSV labelling uploads and the stored labelled
// outputs.
type DatasetHandler struct {
	labeler     *dataset.Labeler
	store       *dataset.Store
	settingsSvc *settings.Service
	eventBus    bus.Bus
	cfg         config.DatasetsConfig
	log         *logger.Logger
}

// NewDatasetHandler creates the dataset handler.
func NewDatasetHandler(labeler *dataset.Labeler, store *dataset.Store, settingsSvc *settings.Service, eventBus bus.Bus, cfg config.DatasetsConfig, log *logger.Logger) *DatasetHandler {
	return &DatasetHandler{
		labeler:     labeler,
		store:       store,
		settingsSvc: settingsSvc,
		eventBus:    eventBus,
		cfg:         cfg,
		log:         log.WithComponent("datasets"),
	}
}

// RegisterRoutes registers dataset routes.
func (h *DatasetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/datasets/label", h.handleLabel)
	mux.HandleFunc("GET /v1/datasets", h.handleList)
	mux.HandleFunc("GET /v1/datasets/{id}", h.handleGet)
	mux.HandleFunc("GET /v1/datasets/{id}/download", h.handleDownload)
	mux.HandleFunc("DELETE /v1/datasets/{id}", h.handleDelete)
}

// LabelResponse is the body of POST /v1/datasets/label. The labelled CSV
// ships inline; when the store retains results the dataset id allows a
// later download.
type LabelResponse struct {
	DatasetID string         `json:"dataset_id,omitempty"`
	Filename  string         `json:"filename"`
	Total     int            `json:"total"`
	Labelled  int            `json:"labelled"`
	Counts    map[string]int `json:"counts"`
	CSV       string         `json:"csv"`
}

// maxUploadBytes resolves the upload cap, runtime settings first.
func (h *DatasetHandler) maxUploadBytes() int64 {
	mb := h.settingsSvc.Get().MaxUploadMB
	if mb <= 0 {
		mb = h.cfg.MaxUploadMB
	}
	if mb <= 0 {
		mb = 64
	}
	return int64(mb) << 20
}

func (h *DatasetHandler) handleLabel(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError("invalid multipart upload or file too large"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperrors.WriteError(w, apperrors.ValidationError("missing file field"))
		return
	}
	defer file.Close()

	rs := h.settingsSvc.Get()
	textColumn := r.FormValue("text_col")
	if textColumn == "" {
		textColumn = rs.TextColumn
	}

	validator := security.LabelRequestValidator{
		Filename:   header.Filename,
		Size:       header.Size,
		TextColumn: textColumn,
	}
	if err := validator.Validate(); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		apperrors.WriteError(w, apperrors.InternalError("failed to read upload", err))
		return
	}

	opts := dataset.LabelOptions{BatchSize: rs.BatchSize, Workers: rs.Workers}
	result, err := h.labeler.LabelCSV(r.Context(), header.Filename, data, textColumn, opts)
	if err != nil {
		h.log.Error("labelling failed", "filename", security.SanitizeForLog(header.Filename), "error", err)
		apperrors.WriteError(w, err)
		return
	}

	resp := LabelResponse{
		Filename: result.Filename,
		Total:    result.Total,
		Labelled: result.Labelled,
		Counts:   result.Counts,
		CSV:      string(result.CSV),
	}

	if h.settingsSvc.Get().RetainResults {
		stored, err := h.store.Save(result, h.labeler.ModelName())
		if err != nil {
			h.log.Warn("failed to retain labelled dataset", "error", err)
		} else {
			resp.DatasetID = stored.ID
		}
	}

	h.publishLabelled(r, resp)

	writeJSON(w, http.StatusOK, resp)
}

func (h *DatasetHandler) publishLabelled(r *http.Request, resp LabelResponse) {
	if h.eventBus == nil {
		return
	}

	event := bus.NewEvent("api", bus.EventDatasetLabelled, bus.DatasetLabelledPayload{
		DatasetID: resp.DatasetID,
		Filename:  resp.Filename,
		Model:     h.labeler.ModelName(),
		Rows:      resp.Total,
		Labelled:  resp.Labelled,
		Counts:    resp.Counts,
	})
	if err := h.eventBus.Publish(r.Context(), event); err != nil {
		h.log.Warn("failed to publish dataset labelled event", "error", err)
	}
}

func (h *DatasetHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	datasets, err := h.store.List()
	if err != nil {
		apperrors.WriteError(w, apperrors.InternalError("failed to list datasets", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": datasets})
}

func (h *DatasetHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := security.ValidateDatasetID(id); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	ds, err := h.store.Get(id)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

func (h *DatasetHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := security.ValidateDatasetID(id); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	rc, ds, err := h.store.Open(id)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ds.Name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("dataset download interrupted", "dataset", id, "error", err)
	}
}

func (h *DatasetHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := security.ValidateDatasetID(id); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	if err := h.store.Delete(id); err != nil {
		apperrors.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/settings"
)

// SettingsHandler serves the runtime settings API.
type SettingsHandler struct {
	svc *settings.Service
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// RegisterRoutes registers settings routes.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/settings", h.handleGet)
	mux.HandleFunc("PUT /v1/settings", h.handlePut)
	mux.HandleFunc("GET /v1/settings/audit", h.handleAudit)
}

func (h *SettingsHandler) handleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Get())
}

func (h *SettingsHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	// Start from the current settings so a partial body only changes the
	// fields it names.
	next := h.svc.Get()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	result, err := h.svc.Update(r.Context(), next, "api")
	if err != nil {
		if !result.Valid {
			writeJSON(w, http.StatusBadRequest, result)
			return
		}
		apperrors.WriteError(w, apperrors.InternalError("failed to update settings", err))
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Get())
}

func (h *SettingsHandler) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.svc.AuditEntries(limit)
	if err != nil {
		apperrors.WriteError(w, apperrors.InternalError("failed to read audit log", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

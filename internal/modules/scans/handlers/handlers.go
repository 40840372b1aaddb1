// Package handlers provides HTTP handlers for running and browsing scans.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/modules/scans"
	"github.com/aristath/optionscope/internal/options"
	"github.com/aristath/optionscope/internal/screener"
)

// Handler handles scan HTTP requests
type Handler struct {
	service *scans.Service
	log     zerolog.Logger
}

// NewHandler creates a new scans handler
func NewHandler(service *scans.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scans").Logger(),
	}
}

// HandleRunScan handles POST /api/v1/scans
func (h *Handler) HandleRunScan(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Screen   screener.ScreenType `json:"screen"`
		Symbols  []string            `json:"symbols,omitempty"`
		Criteria *screener.Criteria  `json:"criteria,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if request.Screen == "" && request.Criteria != nil {
		request.Screen = request.Criteria.Screen
	}
	if !request.Screen.Valid() {
		h.writeError(w, http.StatusBadRequest, "Screen must be 'otm_calls' or 'otm_puts'")
		return
	}

	criteria := screener.DefaultCriteria(request.Screen)
	if request.Criteria != nil {
		criteria = *request.Criteria
		criteria.Screen = request.Screen
	}

	outcome, err := h.service.RunScan(r.Context(), request.Symbols, criteria)
	if err != nil {
		var configErr *options.ConfigurationError
		if errors.As(err, &configErr) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Scan failed")
		h.writeError(w, http.StatusInternalServerError, "Scan failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, outcome)
}

// HandleListRuns handles GET /api/v1/scans
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "Limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.service.Repo().ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scan runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list scan runs")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// HandleGetRun handles GET /api/v1/scans/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.service.Repo().GetRun(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load scan run")
		h.writeError(w, http.StatusInternalServerError, "Failed to load scan run")
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "Scan run not found")
		return
	}

	results, err := h.service.Repo().GetResults(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load scan results")
		h.writeError(w, http.StatusInternalServerError, "Failed to load scan results")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"results": results,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

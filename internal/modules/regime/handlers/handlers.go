// Package handlers provides HTTP handlers for volatility regime
// classification.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/market_regime"
	"github.com/aristath/optionscope/internal/options"
	"github.com/aristath/optionscope/internal/providers"
)

// Handler handles regime HTTP requests. The live endpoint needs an index
// history provider; the classify endpoint is pure computation.
type Handler struct {
	history  providers.IndexHistoryProvider
	volIndex string
	window   int
	log      zerolog.Logger
}

// NewHandler creates a new regime handler. history may be nil, in which
// case the live endpoint reports service unavailable.
func NewHandler(history providers.IndexHistoryProvider, volIndex string, window int, log zerolog.Logger) *Handler {
	return &Handler{
		history:  history,
		volIndex: volIndex,
		window:   window,
		log:      log.With().Str("handler", "regime").Logger(),
	}
}

// HandleClassify handles POST /api/v1/regime/classify
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Level      float64                   `json:"level"`
		Window     []float64                 `json:"window"`
		Thresholds *market_regime.Thresholds `json:"thresholds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	thresholds := market_regime.DefaultThresholds()
	if request.Thresholds != nil {
		thresholds = *request.Thresholds
	}

	classification, err := market_regime.Classify(request.Level, request.Window, thresholds)
	if err != nil {
		var configErr *options.ConfigurationError
		var validationErr *options.ValidationError
		if errors.As(err, &configErr) || errors.As(err, &validationErr) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Classification failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, classification)
}

// HandleCurrent handles GET /api/v1/regime
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "No index history provider configured")
		return
	}

	ctx := r.Context()

	current, err := h.history.GetCurrentLevel(ctx, h.volIndex)
	if err != nil {
		h.log.Error().Err(err).Str("index", h.volIndex).Msg("Failed to fetch current index level")
		h.writeError(w, http.StatusBadGateway, "Failed to fetch current index level: "+err.Error())
		return
	}

	window, err := h.history.GetHistoricalLevels(ctx, h.volIndex, h.window)
	if err != nil {
		h.log.Error().Err(err).Str("index", h.volIndex).Msg("Failed to fetch index history")
		h.writeError(w, http.StatusBadGateway, "Failed to fetch index history: "+err.Error())
		return
	}

	classification, err := market_regime.Classify(current, window, market_regime.DefaultThresholds())
	if err != nil {
		h.log.Error().Err(err).Msg("Classification failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"index":          h.volIndex,
		"classification": classification,
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

// Package handlers provides HTTP handlers for pricing, implied volatility,
// single-leg analysis, and strategy composition.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/options"
	"github.com/aristath/optionscope/internal/strategy"
)

// Handler handles pricing HTTP requests. All endpoints are pure
// computation over the request body, so there is no service behind it.
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "pricing").Logger(),
	}
}

// HandlePrice handles POST /api/v1/price
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Inputs options.PricingInputs `json:"inputs"`
		Type   options.OptionType    `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if !request.Type.Valid() {
		h.writeError(w, http.StatusBadRequest, "Type must be 'call' or 'put'")
		return
	}

	result, err := options.Price(request.Inputs, request.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleImpliedVol handles POST /api/v1/implied-vol
func (h *Handler) HandleImpliedVol(w http.ResponseWriter, r *http.Request) {
	var request struct {
		MarketPrice float64               `json:"market_price"`
		Inputs      options.PricingInputs `json:"inputs"` // Volatility field is ignored
		Type        options.OptionType    `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if !request.Type.Valid() {
		h.writeError(w, http.StatusBadRequest, "Type must be 'call' or 'put'")
		return
	}
	if request.MarketPrice <= 0 {
		h.writeError(w, http.StatusBadRequest, "Market price must be positive")
		return
	}

	result, err := options.SolveImpliedVol(request.MarketPrice, request.Inputs, request.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !result.Converged {
		h.log.Warn().
			Float64("market_price", request.MarketPrice).
			Float64("estimate", result.Volatility).
			Int("iterations", result.Iterations).
			Msg("Implied vol solver did not converge")
	}

	h.writeJSON(w, http.StatusOK, result)
}

// analyzeRequest is shared by the analyze endpoint and tests
type analyzeRequest struct {
	Contract  options.Contract      `json:"contract"`
	Direction analysis.Direction    `json:"direction"`
	Quantity  int                   `json:"quantity"`
	Market    analysis.MarketInputs `json:"market"`
	Asof      *time.Time            `json:"asof,omitempty"`
}

// HandleAnalyze handles POST /api/v1/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var request analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if request.Quantity == 0 {
		request.Quantity = 1
	}

	result, err := analysis.AnalyzeSingleLeg(
		request.Contract,
		request.Direction,
		request.Quantity,
		request.Market,
		asofOrNow(request.Asof),
	)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// strategyRequest covers all three supported shapes; which leg fields are
// required depends on the kind
type strategyRequest struct {
	Kind   strategy.Kind         `json:"kind"`
	Market analysis.MarketInputs `json:"market"`
	Asof   *time.Time            `json:"asof,omitempty"`

	// Vertical spreads
	LongLeg  *options.Contract `json:"long_leg,omitempty"`
	ShortLeg *options.Contract `json:"short_leg,omitempty"`
	Quantity int               `json:"quantity,omitempty"`

	// Covered call
	Call      *options.Contract `json:"call,omitempty"`
	Contracts int               `json:"contracts,omitempty"`
	Shares    int               `json:"shares,omitempty"`
}

// HandleStrategy handles POST /api/v1/strategy
func (h *Handler) HandleStrategy(w http.ResponseWriter, r *http.Request) {
	var request strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	asof := asofOrNow(request.Asof)

	var result strategy.Result
	var err error
	switch request.Kind {
	case strategy.CoveredCall:
		if request.Call == nil {
			h.writeError(w, http.StatusBadRequest, "Covered call requires a 'call' leg")
			return
		}
		contracts := request.Contracts
		if contracts == 0 {
			contracts = 1
		}
		shares := request.Shares
		if shares == 0 {
			shares = contracts * int(analysis.SharesPerContract)
		}
		result, err = strategy.ComposeCoveredCall(*request.Call, contracts, shares, request.Market, asof)

	case strategy.BullCallSpread, strategy.BearPutSpread:
		if request.LongLeg == nil || request.ShortLeg == nil {
			h.writeError(w, http.StatusBadRequest, "Vertical spreads require 'long_leg' and 'short_leg'")
			return
		}
		quantity := request.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if request.Kind == strategy.BullCallSpread {
			result, err = strategy.ComposeBullCallSpread(*request.LongLeg, *request.ShortLeg, quantity, request.Market, asof)
		} else {
			result, err = strategy.ComposeBearPutSpread(*request.LongLeg, *request.ShortLeg, quantity, request.Market, asof)
		}

	default:
		h.writeError(w, http.StatusBadRequest, "Unknown strategy kind: "+string(request.Kind))
		return
	}

	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func asofOrNow(asof *time.Time) time.Time {
	if asof != nil && !asof.IsZero() {
		return asof.UTC()
	}
	return time.Now().UTC()
}

// writeDomainError translates core errors into HTTP statuses: bad inputs
// and bad configuration are the caller's fault, thin quote data is
// unprocessable, anything else is a server error
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *options.ValidationError
	var configErr *options.ConfigurationError
	var dataErr *options.DataQualityError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &configErr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &dataErr):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Pricing request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err, "Should marshal request body")

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "Response should be JSON")
	return out
}

func TestHandlePrice(t *testing.T) {
	router := testRouter(t)

	rec := postJSON(t, router, "/api/v1/price", map[string]interface{}{
		"type": "call",
		"inputs": map[string]float64{
			"spot":           100,
			"strike":         100,
			"time_to_expiry": 0.25,
			"rate":           0.05,
			"volatility":     0.20,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, "Valid pricing request should succeed")

	body := decodeBody(t, rec)
	assert.InDelta(t, 4.61, body["price"].(float64), 0.05, "ATM call should price near 4.61")

	greeks, ok := body["greeks"].(map[string]interface{})
	require.True(t, ok, "Response should carry greeks")
	assert.InDelta(t, 0.57, greeks["delta"].(float64), 0.02)
}

func TestHandlePrice_Invalid(t *testing.T) {
	router := testRouter(t)

	// Unknown option type
	rec := postJSON(t, router, "/api/v1/price", map[string]interface{}{
		"type":   "straddle",
		"inputs": map[string]float64{"spot": 100, "strike": 100, "time_to_expiry": 0.25, "volatility": 0.2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Negative spot fails validation
	rec = postJSON(t, router, "/api/v1/price", map[string]interface{}{
		"type":   "call",
		"inputs": map[string]float64{"spot": -1, "strike": 100, "time_to_expiry": 0.25, "volatility": 0.2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed JSON
	req := httptest.NewRequest(http.MethodPost, "/api/v1/price", bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestHandleImpliedVol_RoundTrip(t *testing.T) {
	router := testRouter(t)

	inputs := map[string]float64{
		"spot":           100,
		"strike":         105,
		"time_to_expiry": 0.5,
		"rate":           0.04,
	}

	// Price at a known vol, then recover it from that price
	priceInputs := map[string]float64{}
	for k, v := range inputs {
		priceInputs[k] = v
	}
	priceInputs["volatility"] = 0.30

	rec := postJSON(t, router, "/api/v1/price", map[string]interface{}{"type": "call", "inputs": priceInputs})
	require.Equal(t, http.StatusOK, rec.Code)
	price := decodeBody(t, rec)["price"].(float64)

	rec = postJSON(t, router, "/api/v1/implied-vol", map[string]interface{}{
		"type":         "call",
		"market_price": price,
		"inputs":       inputs,
	})
	require.Equal(t, http.StatusOK, rec.Code, "Solver request should succeed")

	body := decodeBody(t, rec)
	assert.True(t, body["converged"].(bool), "Solver should converge on a clean price")
	assert.InDelta(t, 0.30, body["volatility"].(float64), 1e-3, "Recovered vol should match the input vol")
}

func TestHandleImpliedVol_RejectsNonPositivePrice(t *testing.T) {
	router := testRouter(t)

	rec := postJSON(t, router, "/api/v1/implied-vol", map[string]interface{}{
		"type":         "put",
		"market_price": 0,
		"inputs":       map[string]float64{"spot": 100, "strike": 100, "time_to_expiry": 0.25},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyze(t *testing.T) {
	router := testRouter(t)

	asof := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rec := postJSON(t, router, "/api/v1/analyze", map[string]interface{}{
		"direction": "short",
		"asof":      asof,
		"contract": map[string]interface{}{
			"symbol":     "SPY",
			"strike":     110.0,
			"expiration": asof.AddDate(0, 0, 45),
			"type":       "call",
			"quote": map[string]interface{}{
				"bid": 1.40, "ask": 1.60, "volume": 500, "open_interest": 2000, "implied_vol": 0.25,
			},
		},
		"market": map[string]float64{"spot": 100, "rate": 0.045},
	})
	require.Equal(t, http.StatusOK, rec.Code, "Valid analyze request should succeed")

	body := decodeBody(t, rec)
	assert.Equal(t, "short", body["direction"])
	assert.InDelta(t, 1.50, body["premium_per_share"].(float64), 1e-9, "Premium should be the quote mid")
	assert.InDelta(t, 111.50, body["breakeven"].(float64), 1e-9, "Short call breakeven is strike plus premium")
	assert.True(t, body["max_loss_unbounded"].(bool), "Naked short call has unbounded loss")
}

func TestHandleAnalyze_ThinQuote(t *testing.T) {
	router := testRouter(t)

	rec := postJSON(t, router, "/api/v1/analyze", map[string]interface{}{
		"direction": "long",
		"contract": map[string]interface{}{
			"symbol":     "SPY",
			"strike":     110.0,
			"expiration": time.Now().UTC().AddDate(0, 0, 45),
			"type":       "call",
			"quote":      map[string]interface{}{},
		},
		"market": map[string]float64{"spot": 100},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "Empty quote should be unprocessable")
}

func TestHandleStrategy_BullCallSpread(t *testing.T) {
	router := testRouter(t)

	asof := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	expiry := asof.AddDate(0, 0, 45)
	leg := func(strike, bid, ask float64) map[string]interface{} {
		return map[string]interface{}{
			"symbol":     "SPY",
			"strike":     strike,
			"expiration": expiry,
			"type":       "call",
			"quote":      map[string]interface{}{"bid": bid, "ask": ask, "volume": 100, "open_interest": 500, "implied_vol": 0.22},
		}
	}

	rec := postJSON(t, router, "/api/v1/strategy", map[string]interface{}{
		"kind":      "bull_call_spread",
		"asof":      asof,
		"long_leg":  leg(100, 4.90, 5.10),
		"short_leg": leg(110, 1.40, 1.60),
		"market":    map[string]float64{"spot": 102, "rate": 0.045},
	})
	require.Equal(t, http.StatusOK, rec.Code, "Valid spread request should succeed")

	body := decodeBody(t, rec)
	assert.Equal(t, "bull_call_spread", body["kind"])
	// Net debit 3.50: long mid 5.00 minus short mid 1.50
	assert.InDelta(t, 3.50, body["net_premium"].(float64), 1e-9)
	assert.InDelta(t, 103.50, body["breakeven"].(float64), 1e-9)
	unbounded, _ := body["max_loss_unbounded"].(bool)
	assert.False(t, unbounded, "Spread risk is capped")
}

func TestHandleStrategy_UnknownKind(t *testing.T) {
	router := testRouter(t)

	rec := postJSON(t, router, "/api/v1/strategy", map[string]interface{}{
		"kind":   "iron_condor",
		"market": map[string]float64{"spot": 100},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStrategy_MissingLegs(t *testing.T) {
	router := testRouter(t)

	rec := postJSON(t, router, "/api/v1/strategy", map[string]interface{}{
		"kind":   "covered_call",
		"market": map[string]float64{"spot": 100},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/optionscope/internal/modules/scans"
	"github.com/aristath/optionscope/internal/options"
	"github.com/aristath/optionscope/internal/providers"
	"github.com/aristath/optionscope/internal/screener"
)

// fakeChains serves one symbol's canned spot and chain
type fakeChains struct {
	symbol string
	spot   float64
	chain  []options.Contract
}

func (f *fakeChains) GetSpot(_ context.Context, symbol string) (float64, error) {
	if symbol != f.symbol {
		return 0, fmt.Errorf("no spot for %s", symbol)
	}
	return f.spot, nil
}

func (f *fakeChains) GetChain(_ context.Context, symbol string, _ time.Time) ([]options.Contract, error) {
	if symbol != f.symbol {
		return nil, fmt.Errorf("no chain for %s", symbol)
	}
	return f.chain, nil
}

func testRouter(t *testing.T) (*chi.Mux, *scans.Service) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "Should open in-memory database")
	t.Cleanup(func() { db.Close() })

	repo, err := scans.NewRepository(db, zerolog.Nop())
	require.NoError(t, err)

	expiry := time.Now().UTC().AddDate(0, 0, 45)
	chains := &fakeChains{
		symbol: "SPY",
		spot:   100,
		chain: []options.Contract{
			{
				Symbol:     "SPY",
				Strike:     107,
				Expiration: expiry,
				Type:       options.Call,
				Quote: options.Quote{
					Bid: 1.40, Ask: 1.60, Volume: 500, OpenInterest: 2000, ImpliedVol: 0.25,
				},
			},
		},
	}

	service := scans.NewService(
		chains,
		providers.StaticRateProvider{Rate: 0.045},
		providers.StaticDividendProvider{},
		nil,
		screener.New(screener.DefaultWeights(), 2, zerolog.Nop()),
		repo,
		scans.ServiceConfig{VolIndex: "I:VIX", RegimeWindow: 252, DefaultSymbols: []string{"SPY"}},
		zerolog.Nop(),
	)

	r := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(r)
	return r, service
}

func TestRegisterRoutes(t *testing.T) {
	router, _ := testRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/scans"},
		{http.MethodGet, "/api/v1/scans"},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte("{}")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusNotFound, rec.Code, "Route %s %s should exist", tc.method, tc.path)
		assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, "Route %s %s should allow the method", tc.method, tc.path)
	}
}

func TestHandleRunScan(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans",
		bytes.NewReader([]byte(`{"screen": "otm_calls"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "Scan with defaults should succeed")

	var body struct {
		Run           scans.ScanRun          `json:"run"`
		Opportunities []screener.Opportunity `json:"opportunities"`
		Regime        map[string]interface{} `json:"regime"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, scans.StatusCompleted, body.Run.Status)
	assert.Equal(t, []string{"SPY"}, body.Run.Symbols)
	require.Len(t, body.Opportunities, 1)
	assert.Equal(t, "SPY", body.Opportunities[0].Contract.Symbol)
	assert.Nil(t, body.Regime, "No history provider means no regime")
}

func TestHandleRunScan_BadScreen(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans",
		bytes.NewReader([]byte(`{"screen": "itm_straddles"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRunScan_BadCriteria(t *testing.T) {
	router, _ := testRouter(t)

	// Inverted delta band fails criteria validation inside the screener
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans",
		bytes.NewReader([]byte(`{"screen": "otm_calls", "criteria": {"screen": "otm_calls", "delta_min": 0.4, "delta_max": 0.2, "dte_min": 21, "dte_max": 60}}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListAndGetRun(t *testing.T) {
	router, service := testRouter(t)

	outcome, err := service.RunScan(context.Background(), nil, screener.DefaultCriteria(screener.OTMCalls))
	require.NoError(t, err, "Seed scan should succeed")

	// List shows the seeded run
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listBody struct {
		Runs []scans.ScanRun `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listBody))
	require.Len(t, listBody.Runs, 1)
	assert.Equal(t, outcome.Run.ID, listBody.Runs[0].ID)

	// Get returns the run with its results
	req = httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+outcome.Run.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var getBody struct {
		Run     scans.ScanRun      `json:"run"`
		Results []scans.ScanResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&getBody))
	assert.Equal(t, outcome.Run.ID, getBody.Run.ID)
	require.Len(t, getBody.Results, 1)
	assert.Equal(t, 1, getBody.Results[0].Rank)
	assert.Equal(t, "SPY", getBody.Results[0].Symbol)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/no-such-run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListRuns_BadLimit(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

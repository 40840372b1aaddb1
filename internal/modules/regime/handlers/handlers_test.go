package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory serves fixed index data for the live endpoint
type fakeHistory struct {
	current float64
	window  []float64
	err     error
}

func (f *fakeHistory) GetCurrentLevel(_ context.Context, _ string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.current, nil
}

func (f *fakeHistory) GetHistoricalLevels(_ context.Context, _ string, _ int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.window, nil
}

func testRouter(t *testing.T, h *Handler) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// rampWindow yields 1..n, so percentile ranks are easy to reason about
func rampWindow(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = float64(i + 1)
	}
	return window
}

func TestHandleClassify(t *testing.T) {
	router := testRouter(t, NewHandler(nil, "I:VIX", 252, zerolog.Nop()))

	payload, err := json.Marshal(map[string]interface{}{
		"level":  90.0,
		"window": rampWindow(100),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regime/classify", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "Classify should succeed without a provider")

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "high", body["regime"], "90th ranked level of a ramp should classify high")
	assert.InDelta(t, 90.0, body["percentile"].(float64), 0.5)
	assert.Equal(t, float64(100), body["sample_size"].(float64))
	assert.NotEmpty(t, body["implication"])
}

func TestHandleClassify_BadThresholds(t *testing.T) {
	router := testRouter(t, NewHandler(nil, "I:VIX", 252, zerolog.Nop()))

	payload, err := json.Marshal(map[string]interface{}{
		"level":  20.0,
		"window": rampWindow(50),
		"thresholds": map[string]interface{}{
			"mode":         "percentile",
			"low_max":      60,
			"normal_max":   25,
			"elevated_max": 85,
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regime/classify", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "Inverted bands should be rejected")
}

func TestHandleClassify_EmptyWindow(t *testing.T) {
	router := testRouter(t, NewHandler(nil, "I:VIX", 252, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regime/classify",
		bytes.NewReader([]byte(`{"level": 20, "window": []}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCurrent(t *testing.T) {
	history := &fakeHistory{current: 15, window: rampWindow(100)}
	router := testRouter(t, NewHandler(history, "I:VIX", 252, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regime", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Index          string                 `json:"index"`
		Classification map[string]interface{} `json:"classification"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "I:VIX", body.Index)
	assert.Equal(t, "low", body.Classification["regime"], "15th ranked level of a ramp should classify low")
}

func TestHandleCurrent_NoProvider(t *testing.T) {
	router := testRouter(t, NewHandler(nil, "I:VIX", 252, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regime", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleCurrent_ProviderFailure(t *testing.T) {
	history := &fakeHistory{err: fmt.Errorf("index feed down")}
	router := testRouter(t, NewHandler(history, "I:VIX", 252, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regime", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

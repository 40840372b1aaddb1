package scans

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/optionscope/internal/options"
	"github.com/aristath/optionscope/internal/providers"
	"github.com/aristath/optionscope/internal/screener"
)

// fakeChains serves canned spots and chains, with per-symbol failures
type fakeChains struct {
	spots  map[string]float64
	chains map[string][]options.Contract
}

func (f *fakeChains) GetSpot(_ context.Context, symbol string) (float64, error) {
	spot, ok := f.spots[symbol]
	if !ok {
		return 0, fmt.Errorf("no spot for %s", symbol)
	}
	return spot, nil
}

func (f *fakeChains) GetChain(_ context.Context, symbol string, _ time.Time) ([]options.Contract, error) {
	chain, ok := f.chains[symbol]
	if !ok {
		return nil, fmt.Errorf("no chain for %s", symbol)
	}
	return chain, nil
}

// fakeHistory serves a fixed index level and window, or fails outright
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

func testContract(symbol string, strike float64, expiration time.Time) options.Contract {
	return options.Contract{
		Symbol:     symbol,
		Strike:     strike,
		Expiration: expiration,
		Type:       options.Call,
		Quote: options.Quote{
			Bid:          1.40,
			Ask:          1.60,
			Last:         1.50,
			Volume:       500,
			OpenInterest: 2000,
			ImpliedVol:   0.25,
		},
	}
}

func testService(t *testing.T, chains providers.ChainProvider, history providers.IndexHistoryProvider) *Service {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "Should open in-memory database")
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)

	return NewService(
		chains,
		providers.StaticRateProvider{Rate: 0.045},
		providers.StaticDividendProvider{},
		history,
		screener.New(screener.DefaultWeights(), 2, zerolog.Nop()),
		repo,
		ServiceConfig{VolIndex: "I:VIX", RegimeWindow: 252, DefaultSymbols: []string{"SPY"}},
		zerolog.Nop(),
	)
}

// steadyWindow yields a regime window whose percentile math is predictable
func steadyWindow(n int, level float64) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = level
	}
	return window
}

func TestService_RunScan_PersistsRankedResults(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 45)
	chains := &fakeChains{
		spots: map[string]float64{"SPY": 100},
		chains: map[string][]options.Contract{
			"SPY": {
				testContract("SPY", 106, expiry),
				testContract("SPY", 108, expiry),
				// ITM strike, filtered out by the OTM screen
				testContract("SPY", 95, expiry),
			},
		},
	}
	history := &fakeHistory{current: 16, window: steadyWindow(252, 18)}
	svc := testService(t, chains, history)

	outcome, err := svc.RunScan(context.Background(), []string{"SPY"}, screener.DefaultCriteria(screener.OTMCalls))
	require.NoError(t, err, "Scan should succeed")
	require.NotNil(t, outcome)

	assert.Equal(t, StatusCompleted, outcome.Run.Status)
	assert.NotNil(t, outcome.Regime, "Regime should be classified from the fake history")
	require.Len(t, outcome.Opportunities, 2, "Both OTM strikes should survive, ITM dropped")

	// Ranking is by score, best first
	assert.GreaterOrEqual(t, outcome.Opportunities[0].Score, outcome.Opportunities[1].Score)

	// The run and its shortlist are persisted
	loaded, err := svc.Repo().GetRun(outcome.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.ResultCount)
	assert.NotEmpty(t, loaded.Regime)
	require.NotNil(t, loaded.CompletedAt)

	results, err := svc.Repo().GetResults(outcome.Run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "SPY", results[0].Symbol)
	assert.InDelta(t, outcome.Opportunities[0].Score, results[0].Score, 1e-9)
}

func TestService_RunScan_DegradesWithoutRegime(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 45)
	chains := &fakeChains{
		spots:  map[string]float64{"SPY": 100},
		chains: map[string][]options.Contract{"SPY": {testContract("SPY", 107, expiry)}},
	}
	history := &fakeHistory{err: fmt.Errorf("index feed down")}
	svc := testService(t, chains, history)

	outcome, err := svc.RunScan(context.Background(), nil, screener.DefaultCriteria(screener.OTMCalls))
	require.NoError(t, err, "Regime failure should not fail the scan")
	require.NotNil(t, outcome)

	assert.Nil(t, outcome.Regime)
	assert.Empty(t, outcome.Run.Regime)
	assert.Equal(t, StatusCompleted, outcome.Run.Status)
	assert.NotEmpty(t, outcome.Opportunities, "Scan should still produce unadjusted results")
}

func TestService_RunScan_SkipsBrokenSymbols(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 45)
	chains := &fakeChains{
		// QQQ has no spot, so only SPY contributes
		spots:  map[string]float64{"SPY": 100},
		chains: map[string][]options.Contract{"SPY": {testContract("SPY", 107, expiry)}},
	}
	svc := testService(t, chains, &fakeHistory{current: 16, window: steadyWindow(252, 18)})

	outcome, err := svc.RunScan(context.Background(), []string{"SPY", "QQQ"}, screener.DefaultCriteria(screener.OTMCalls))
	require.NoError(t, err, "One broken symbol should not fail the scan")
	require.NotNil(t, outcome)
	assert.Equal(t, StatusCompleted, outcome.Run.Status)

	for _, opp := range outcome.Opportunities {
		assert.Equal(t, "SPY", opp.Contract.Symbol)
	}
}

func TestService_RunScan_FailsWithEmptyUniverse(t *testing.T) {
	chains := &fakeChains{spots: map[string]float64{}, chains: map[string][]options.Contract{}}
	svc := testService(t, chains, nil)

	_, err := svc.RunScan(context.Background(), []string{"SPY"}, screener.DefaultCriteria(screener.OTMCalls))
	require.Error(t, err, "No usable symbols should fail the run")

	// The failure is persisted on the run row
	runs, listErr := svc.Repo().ListRuns(10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

// captureRateProvider records the as-of instant it is asked to price at
type captureRateProvider struct {
	asof time.Time
}

func (p *captureRateProvider) GetRiskFreeRate(_ context.Context, asof time.Time) (float64, error) {
	p.asof = asof
	return 0.045, nil
}

func TestService_RunScan_SingleAsofPerRun(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 45)
	chains := &fakeChains{
		spots:  map[string]float64{"SPY": 100},
		chains: map[string][]options.Contract{"SPY": {testContract("SPY", 107, expiry)}},
	}
	svc := testService(t, chains, nil)
	rates := &captureRateProvider{}
	svc.rates = rates

	outcome, err := svc.RunScan(context.Background(), []string{"SPY"}, screener.DefaultCriteria(screener.OTMCalls))
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, outcome.Run.StartedAt, rates.asof,
		"Universe assembly must price at the run's started_at, not its own clock")
}

func TestService_RunScan_RejectsEmptySymbolList(t *testing.T) {
	svc := testService(t, &fakeChains{}, nil)
	svc.cfg.DefaultSymbols = nil

	_, err := svc.RunScan(context.Background(), nil, screener.DefaultCriteria(screener.OTMCalls))
	require.Error(t, err, "No symbols anywhere should be rejected up front")
}

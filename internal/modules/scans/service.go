package scans

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/market_regime"
	"github.com/aristath/optionscope/internal/providers"
	"github.com/aristath/optionscope/internal/screener"
)

// ServiceConfig carries the scan pipeline's tunables
type ServiceConfig struct {
	VolIndex       string   // Volatility index ticker for regime classification
	RegimeWindow   int      // Trading days of index history
	DefaultSymbols []string // Used when a scan request names no symbols
}

// Service orchestrates one scan: classify the regime, assemble the
// universe from the providers, screen it, persist the run.
type Service struct {
	chains    providers.ChainProvider
	rates     providers.RateProvider
	dividends providers.DividendProvider
	history   providers.IndexHistoryProvider
	screener  *screener.Screener
	repo      *Repository
	cfg       ServiceConfig
	log       zerolog.Logger
}

// NewService wires the scan service
func NewService(
	chains providers.ChainProvider,
	rates providers.RateProvider,
	dividends providers.DividendProvider,
	history providers.IndexHistoryProvider,
	scr *screener.Screener,
	repo *Repository,
	cfg ServiceConfig,
	log zerolog.Logger,
) *Service {
	return &Service{
		chains:    chains,
		rates:     rates,
		dividends: dividends,
		history:   history,
		screener:  scr,
		repo:      repo,
		cfg:       cfg,
		log:       log.With().Str("component", "scans").Logger(),
	}
}

// Outcome is the result of one scan run: the persisted run record plus
// its ranked opportunities
type Outcome struct {
	Run           ScanRun                       `json:"run"`
	Regime        *market_regime.Classification `json:"regime,omitempty"`
	Opportunities []screener.Opportunity        `json:"opportunities"`
}

// RunScan executes the full pipeline. Symbols defaults to the configured
// universe when empty. Regime data failures degrade to an unadjusted scan
// rather than failing the run; symbol data failures drop that symbol only.
func (s *Service) RunScan(ctx context.Context, symbols []string, criteria screener.Criteria) (*Outcome, error) {
	if len(symbols) == 0 {
		symbols = s.cfg.DefaultSymbols
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to scan")
	}

	run := ScanRun{
		ID:        uuid.New().String(),
		Screen:    criteria.Screen,
		Symbols:   symbols,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateRun(run); err != nil {
		return nil, err
	}

	regime := s.classifyRegime(ctx)
	if regime != nil {
		run.Regime = string(regime.Regime)
		run.IndexLevel = regime.Level
		run.Percentile = regime.Percentile
	}

	universe, err := s.buildUniverse(ctx, symbols, run.StartedAt)
	if err != nil {
		s.failRun(&run, err)
		return nil, err
	}

	opportunities, err := s.screener.Screen(ctx, universe, criteria, regime, run.StartedAt)
	if err != nil {
		s.failRun(&run, err)
		return nil, err
	}

	results := make([]ScanResult, 0, len(opportunities))
	for i, opp := range opportunities {
		results = append(results, resultFromOpportunity(run.ID, i+1, opp))
	}

	now := time.Now().UTC()
	run.Status = StatusCompleted
	run.ResultCount = len(results)
	run.CompletedAt = &now
	if err := s.repo.CompleteRun(run, results); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("screen", string(criteria.Screen)).
		Strs("symbols", symbols).
		Str("regime", run.Regime).
		Int("results", len(results)).
		Msg("Scan completed")

	return &Outcome{Run: run, Regime: regime, Opportunities: opportunities}, nil
}

// Repo exposes the repository for read-only handlers
func (s *Service) Repo() *Repository {
	return s.repo
}

// classifyRegime fetches index history and classifies it. Any failure is
// logged and reported as "no regime available".
func (s *Service) classifyRegime(ctx context.Context) *market_regime.Classification {
	if s.history == nil {
		return nil
	}

	current, err := s.history.GetCurrentLevel(ctx, s.cfg.VolIndex)
	if err != nil {
		s.log.Warn().Err(err).Str("index", s.cfg.VolIndex).Msg("No current index level, scanning without regime")
		return nil
	}

	window, err := s.history.GetHistoricalLevels(ctx, s.cfg.VolIndex, s.cfg.RegimeWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("index", s.cfg.VolIndex).Msg("No index history, scanning without regime")
		return nil
	}

	classification, err := market_regime.Classify(current, window, market_regime.DefaultThresholds())
	if err != nil {
		s.log.Warn().Err(err).Msg("Regime classification failed, scanning without regime")
		return nil
	}

	s.log.Debug().
		Float64("level", classification.Level).
		Float64("percentile", classification.Percentile).
		Str("regime", string(classification.Regime)).
		Msg("Classified volatility regime")

	return &classification
}

// buildUniverse assembles per-symbol market data and chains at the run's
// as-of instant. A symbol whose data cannot be fetched is dropped with a
// warning; the scan fails only when nothing is left.
func (s *Service) buildUniverse(ctx context.Context, symbols []string, asof time.Time) ([]screener.SymbolUniverse, error) {
	if s.chains == nil {
		return nil, fmt.Errorf("no chain provider configured")
	}

	rate, err := s.rates.GetRiskFreeRate(ctx, asof)
	if err != nil {
		s.log.Warn().Err(err).Msg("No risk-free rate, pricing with zero rate")
		rate = 0
	}

	universe := make([]screener.SymbolUniverse, 0, len(symbols))
	for _, symbol := range symbols {
		spot, err := s.chains.GetSpot(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, no spot")
			continue
		}

		contracts, err := s.chains.GetChain(ctx, symbol, time.Time{})
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, no chain")
			continue
		}

		yield := 0.0
		if s.dividends != nil {
			if y, err := s.dividends.GetDividendYield(ctx, symbol, asof); err == nil {
				yield = y
			}
		}

		universe = append(universe, screener.SymbolUniverse{
			Symbol: symbol,
			Market: screener.SymbolMarket{
				Spot:          spot,
				Rate:          rate,
				DividendYield: yield,
			},
			Contracts: contracts,
		})
	}

	if len(universe) == 0 {
		return nil, fmt.Errorf("no symbols with usable market data out of %d requested", len(symbols))
	}

	return universe, nil
}

// failRun records the failure on the run row; persistence errors here are
// logged and swallowed so the original error is what the caller sees
func (s *Service) failRun(run *ScanRun, cause error) {
	now := time.Now().UTC()
	run.Status = StatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	if err := s.repo.CompleteRun(*run, nil); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist failed run")
	}
}

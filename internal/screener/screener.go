package screener

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/market_regime"
	"github.com/aristath/optionscope/internal/options"
)

// defaultWorkers caps the fan-out when the caller does not configure one
const defaultWorkers = 8

// SymbolMarket is the market environment for one underlying, supplied by
// the caller's data sources before the screen runs - the screener itself
// never touches I/O
type SymbolMarket struct {
	Spot          float64 `json:"spot"`
	Rate          float64 `json:"rate"`
	DividendYield float64 `json:"dividend_yield"`
}

// SymbolUniverse is one underlying's slice of the screening universe
type SymbolUniverse struct {
	Symbol    string             `json:"symbol"`
	Market    SymbolMarket       `json:"market"`
	Contracts []options.Contract `json:"contracts"`
}

// Opportunity is one scored, ranked screen survivor
type Opportunity struct {
	Contract  options.Contract           `json:"contract"`
	Analysis  analysis.SingleLegAnalysis `json:"analysis"`
	DTE       int                        `json:"dte"`
	Score     float64                    `json:"score"`
	SubScores SubScores                  `json:"sub_scores"`
}

// Screener runs the filter/score/rank pipeline. It holds configuration
// only - no state survives between Screen calls.
type Screener struct {
	weights Weights
	workers int
	log     zerolog.Logger
}

// New creates a screener with the given scoring weights. workers <= 0
// selects the default fan-out width.
func New(weights Weights, workers int, log zerolog.Logger) *Screener {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Screener{
		weights: weights,
		workers: workers,
		log:     log.With().Str("component", "screener").Logger(),
	}
}

// Screen filters, scores, and ranks the universe. Per-symbol work is
// independent, so symbols fan out across the worker pool and the final
// deterministic sort happens once everything is collected. Contracts with
// unusable quote data are dropped individually - one bad quote never fails
// the batch.
func (s *Screener) Screen(
	ctx context.Context,
	universe []SymbolUniverse,
	criteria Criteria,
	regime *market_regime.Classification,
	asof time.Time,
) ([]Opportunity, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	effective := criteria
	if regime != nil {
		effective = criteria.AdjustForRegime(regime.Regime)
	}

	if len(universe) == 0 {
		return []Opportunity{}, nil
	}

	jobs := make(chan SymbolUniverse, len(universe))
	results := make(chan []Opportunity, len(universe))

	workers := s.workers
	if len(universe) < workers {
		workers = len(universe)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- s.screenSymbol(symbol, effective, regime, asof)
			}
		}()
	}

	for _, symbol := range universe {
		jobs <- symbol
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var opportunities []Opportunity
	for batch := range results {
		opportunities = append(opportunities, batch...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rank(opportunities, effective)

	limit := effective.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if len(opportunities) > limit {
		opportunities = opportunities[:limit]
	}

	s.log.Debug().
		Int("symbols", len(universe)).
		Int("survivors", len(opportunities)).
		Str("screen", string(effective.Screen)).
		Msg("Screen completed")

	return opportunities, nil
}

// screenSymbol applies the structural filter and scoring to one symbol's
// contracts
func (s *Screener) screenSymbol(symbol SymbolUniverse, criteria Criteria, regime *market_regime.Classification, asof time.Time) []Opportunity {
	market := analysis.MarketInputs{
		Spot:          symbol.Market.Spot,
		Rate:          symbol.Market.Rate,
		DividendYield: symbol.Market.DividendYield,
	}

	var out []Opportunity
	for _, contract := range symbol.Contracts {
		opportunity, ok := s.evaluateContract(contract, symbol, market, criteria, regime, asof)
		if ok {
			out = append(out, opportunity)
		}
	}
	return out
}

// evaluateContract runs one contract through filter, analysis, and
// scoring. A false return means the contract was filtered out or its data
// was too thin to score.
func (s *Screener) evaluateContract(
	contract options.Contract,
	symbol SymbolUniverse,
	market analysis.MarketInputs,
	criteria Criteria,
	regime *market_regime.Classification,
	asof time.Time,
) (Opportunity, bool) {
	if !passesStructuralFilter(contract, symbol.Market.Spot, criteria, asof) {
		return Opportunity{}, false
	}

	// Quote thin enough to be meaningless: isolate and drop, never fail
	// the whole screen
	q := contract.Quote
	if q.Volume == 0 && q.OpenInterest == 0 && q.Last == 0 {
		s.log.Debug().
			Str("symbol", contract.Symbol).
			Float64("strike", contract.Strike).
			Msg("Dropping contract with no quote data")
		return Opportunity{}, false
	}

	// These screens feed premium-selling structures, so the analyzed
	// position is short
	legAnalysis, err := analysis.AnalyzeSingleLeg(contract, analysis.Short, 1, market, asof)
	if err != nil {
		s.log.Debug().Err(err).
			Str("symbol", contract.Symbol).
			Float64("strike", contract.Strike).
			Msg("Dropping contract that failed analysis")
		return Opportunity{}, false
	}

	subScores := scoreContract(contract, legAnalysis, symbol.Market.Spot, criteria.Screen, regime, s.weights)

	return Opportunity{
		Contract:  contract,
		Analysis:  legAnalysis,
		DTE:       contract.DaysToExpiry(asof),
		Score:     subScores.Total(),
		SubScores: subScores,
	}, true
}

// passesStructuralFilter applies the hard criteria: orientation, delta
// band, DTE band, liquidity floors
func passesStructuralFilter(contract options.Contract, spot float64, criteria Criteria, asof time.Time) bool {
	switch criteria.Screen {
	case OTMCalls:
		if contract.Type != options.Call || contract.Strike <= spot {
			return false
		}
	case OTMPuts:
		if contract.Type != options.Put || contract.Strike >= spot {
			return false
		}
	}

	dte := contract.DaysToExpiry(asof)
	if dte < criteria.DTEMin || dte > criteria.DTEMax {
		return false
	}
	if contract.Quote.Volume < criteria.MinVolume {
		return false
	}
	if contract.Quote.OpenInterest < criteria.MinOpenInterest {
		return false
	}

	// Delta band is absolute; the quote's observed delta may be missing,
	// in which case the analyzer's model delta decides later. Here we use
	// the observed IV to keep the filter cheap.
	delta := observedAbsDelta(contract, spot, asof)
	if delta < criteria.DeltaMin || delta > criteria.DeltaMax {
		return false
	}

	return true
}

// observedAbsDelta prices the contract off its observed (or a fallback)
// implied vol to obtain the |delta| the band filter needs
func observedAbsDelta(contract options.Contract, spot float64, asof time.Time) float64 {
	sigma := contract.Quote.ImpliedVol
	if sigma <= 0 {
		sigma = 0.30
	}
	priced, err := options.Price(options.PricingInputs{
		Spot:         spot,
		Strike:       contract.Strike,
		TimeToExpiry: contract.TimeToExpiry(asof),
		Volatility:   sigma,
	}, contract.Type)
	if err != nil {
		return 0
	}
	return math.Abs(priced.Greeks.Delta)
}

// rank sorts descending by score with deterministic tie-breaks: higher
// open interest first, then the contract whose |delta| sits nearer the
// band's target, then symbol and strike as a final stable key
func rank(opportunities []Opportunity, criteria Criteria) {
	target := criteria.DeltaTarget()
	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Contract.Quote.OpenInterest != b.Contract.Quote.OpenInterest {
			return a.Contract.Quote.OpenInterest > b.Contract.Quote.OpenInterest
		}
		aDist := math.Abs(math.Abs(a.Analysis.Greeks.Delta) - target)
		bDist := math.Abs(math.Abs(b.Analysis.Greeks.Delta) - target)
		if aDist != bDist {
			return aDist < bDist
		}
		if a.Contract.Symbol != b.Contract.Symbol {
			return a.Contract.Symbol < b.Contract.Symbol
		}
		return a.Contract.Strike < b.Contract.Strike
	})
}

// Package scans runs the scheduled and on-demand screening pipeline and
// persists every run with its ranked shortlist.
package scans

import (
	"time"

	"github.com/aristath/optionscope/internal/screener"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanRun is one execution of the screening pipeline
type ScanRun struct {
	ID          string              `json:"id"`
	Screen      screener.ScreenType `json:"screen"`
	Symbols     []string            `json:"symbols"`
	Regime      string              `json:"regime,omitempty"` // Empty when no regime data was available
	IndexLevel  float64             `json:"index_level,omitempty"`
	Percentile  float64             `json:"percentile,omitempty"`
	Status      string              `json:"status"`
	Error       string              `json:"error,omitempty"`
	ResultCount int                 `json:"result_count"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// ScanResult is one ranked row of a run's shortlist, flattened for storage.
// Rank is 1-based and unique within a run.
type ScanResult struct {
	RunID           string    `json:"run_id"`
	Rank            int       `json:"rank"`
	Symbol          string    `json:"symbol"`
	OCCSymbol       string    `json:"occ_symbol,omitempty"`
	OptionType      string    `json:"option_type"`
	Strike          float64   `json:"strike"`
	Expiration      time.Time `json:"expiration"`
	DTE             int       `json:"dte"`
	Premium         float64   `json:"premium"`
	Delta           float64   `json:"delta"`
	ImpliedVol      float64   `json:"implied_vol"`
	POP             float64   `json:"pop"`
	Breakeven       float64   `json:"breakeven"`
	Score           float64   `json:"score"`
	LiquidityScore  float64   `json:"liquidity_score"`
	POPScore        float64   `json:"pop_score"`
	RiskRewardScore float64   `json:"risk_reward_score"`
	TimeValueScore  float64   `json:"time_value_score"`
	MacroScore      float64   `json:"macro_score"`
}

// resultFromOpportunity flattens a screener opportunity into a storable row
func resultFromOpportunity(runID string, rank int, opp screener.Opportunity) ScanResult {
	return ScanResult{
		RunID:           runID,
		Rank:            rank,
		Symbol:          opp.Contract.Symbol,
		OCCSymbol:       opp.Contract.OCCSymbol,
		OptionType:      string(opp.Contract.Type),
		Strike:          opp.Contract.Strike,
		Expiration:      opp.Contract.Expiration,
		DTE:             opp.DTE,
		Premium:         opp.Contract.Quote.Mid(),
		Delta:           opp.Analysis.Greeks.Delta,
		ImpliedVol:      opp.Contract.Quote.ImpliedVol,
		POP:             opp.Analysis.ProbabilityOfProfit,
		Breakeven:       opp.Analysis.Breakeven,
		Score:           opp.Score,
		LiquidityScore:  opp.SubScores.Liquidity,
		POPScore:        opp.SubScores.POP,
		RiskRewardScore: opp.SubScores.RiskReward,
		TimeValueScore:  opp.SubScores.TimeValue,
		MacroScore:      opp.SubScores.Macro,
	}
}

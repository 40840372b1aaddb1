package screener

import (
	"math"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/market_regime"
	"github.com/aristath/optionscope/internal/options"
)

// =============================================================================
// OPPORTUNITY SCORING WEIGHTS
// =============================================================================
// Five sub-scores sum to a 0-100 composite. The split is a policy choice,
// not a derived quantity - it encodes what the screen is for (selling
// premium that is likely to expire worthless, at strikes that can be
// traded out of), so it lives in a configurable struct rather than
// hard-wired constants.
//
// Philosophy:
// - Probability of profit (25): the screen exists to find trades that win
// - Liquidity (20): a good price nobody will fill is not a good price
// - Risk/reward (20): premium collected against what is at stake
// - Macro context (20): regime alignment with the screen's directional bias
// - Time value (15): prefer premium that is extrinsic, not parity

// Weights split the 100-point composite across the five factors
type Weights struct {
	Liquidity  float64 `json:"liquidity"`
	POP        float64 `json:"pop"`
	RiskReward float64 `json:"risk_reward"`
	TimeValue  float64 `json:"time_value"`
	Macro      float64 `json:"macro"`
}

// DefaultWeights - the 20/25/20/15/20 split described above
func DefaultWeights() Weights {
	return Weights{
		Liquidity:  20,
		POP:        25,
		RiskReward: 20,
		TimeValue:  15,
		Macro:      20,
	}
}

// Normalization anchors for the liquidity sub-score: at or above these the
// contract is considered fully liquid
const (
	fullLiquidityVolume       = 1000.0
	fullLiquidityOpenInterest = 2000.0

	// A 2:1 profit-to-loss ratio earns full risk/reward credit
	fullRiskRewardRatio = 2.0

	// Proxy anchor: premium equal to 5% of the breakeven distance earns
	// full credit when the loss side is unbounded
	fullPremiumToDistance = 0.05
)

// SubScores itemizes the composite so the dashboard can show why a
// contract ranked where it did
type SubScores struct {
	Liquidity  float64 `json:"liquidity"`
	POP        float64 `json:"pop"`
	RiskReward float64 `json:"risk_reward"`
	TimeValue  float64 `json:"time_value"`
	Macro      float64 `json:"macro"`
}

// Total sums the sub-scores into the 0-100 composite
func (s SubScores) Total() float64 {
	return s.Liquidity + s.POP + s.RiskReward + s.TimeValue + s.Macro
}

// scoreContract computes the five sub-scores for a surviving contract
func scoreContract(
	contract options.Contract,
	legAnalysis analysis.SingleLegAnalysis,
	spot float64,
	screen ScreenType,
	regime *market_regime.Classification,
	weights Weights,
) SubScores {
	return SubScores{
		Liquidity:  liquidityScore(contract.Quote) * weights.Liquidity,
		POP:        legAnalysis.ProbabilityOfProfit / 100 * weights.POP,
		RiskReward: riskRewardScore(legAnalysis, spot) * weights.RiskReward,
		TimeValue:  timeValueScore(contract, spot) * weights.TimeValue,
		Macro:      macroScore(screen, regime) * weights.Macro,
	}
}

// liquidityScore blends volume and open interest, each saturating at its
// full-liquidity anchor. Open interest weighs more: it is the standing
// market, volume is just today.
func liquidityScore(q options.Quote) float64 {
	volumeComponent := math.Min(1, float64(q.Volume)/fullLiquidityVolume)
	oiComponent := math.Min(1, float64(q.OpenInterest)/fullLiquidityOpenInterest)
	return 0.4*volumeComponent + 0.6*oiComponent
}

// riskRewardScore uses the max-profit / max-loss ratio where both sides
// are bounded. Where the loss side is unbounded (short calls) it falls
// back to the premium-to-breakeven-distance proxy: how much cushion the
// premium buys per unit of adverse move.
func riskRewardScore(legAnalysis analysis.SingleLegAnalysis, spot float64) float64 {
	if !legAnalysis.MaxProfitUnbounded && !legAnalysis.MaxLossUnbounded && legAnalysis.MaxLoss > 0 {
		ratio := legAnalysis.MaxProfit / legAnalysis.MaxLoss
		return math.Min(1, ratio/fullRiskRewardRatio)
	}

	distance := math.Abs(legAnalysis.Breakeven - spot)
	if distance == 0 {
		return 0
	}
	return math.Min(1, legAnalysis.PremiumPerShare/distance/fullPremiumToDistance)
}

// timeValueScore is the extrinsic share of the premium: 1.0 when the
// entire premium is time value, 0 when it is all parity
func timeValueScore(contract options.Contract, spot float64) float64 {
	premium := contract.Quote.Mid()
	if premium <= 0 {
		return 0
	}
	extrinsic := premium - options.IntrinsicValue(spot, contract.Strike, contract.Type)
	if extrinsic <= 0 {
		return 0
	}
	return math.Min(1, extrinsic/premium)
}

// macroAlignment scores how well each regime suits each screen's bias.
// Selling calls against stock wants rich premium but caps the upside, so
// it peaks in elevated vol; selling puts is a bullish commitment, so
// stressed markets punish it hardest.
var macroAlignment = map[ScreenType]map[market_regime.Regime]float64{
	OTMCalls: {
		market_regime.RegimeLow:      0.45,
		market_regime.RegimeNormal:   0.60,
		market_regime.RegimeElevated: 0.90,
		market_regime.RegimeHigh:     0.70,
	},
	OTMPuts: {
		market_regime.RegimeLow:      0.60,
		market_regime.RegimeNormal:   0.75,
		market_regime.RegimeElevated: 0.70,
		market_regime.RegimeHigh:     0.30,
	},
}

// macroScore reads the alignment table; with no regime supplied the factor
// is neutral so the other four sub-scores decide
func macroScore(screen ScreenType, regime *market_regime.Classification) float64 {
	if regime == nil {
		return 0.5
	}
	if alignment, ok := macroAlignment[screen][regime.Regime]; ok {
		return alignment
	}
	return 0.5
}

// Package strategy composes multi-leg option positions out of single legs:
// covered calls, bull call spreads, and bear put spreads, with net premium,
// net Greeks, and the analytic breakeven / max-profit / max-loss each shape
// admits. Further fixed-leg templates plug into the same leg plumbing.
package strategy

import (
	"time"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/options"
)

// Kind names a supported strategy template
type Kind string

const (
	// CoveredCall - long 100 shares per contract, short one call
	CoveredCall Kind = "covered_call"
	// BullCallSpread - long lower-strike call, short higher-strike call
	BullCallSpread Kind = "bull_call_spread"
	// BearPutSpread - long higher-strike put, short lower-strike put
	BearPutSpread Kind = "bear_put_spread"
)

// Leg is one (contract, direction, quantity) component of a strategy
type Leg struct {
	Contract  options.Contract   `json:"contract"`
	Direction analysis.Direction `json:"direction"`
	Quantity  int                `json:"quantity"`
}

// Premium returns the leg's quote midpoint per share
func (l Leg) Premium() float64 {
	return l.Contract.Quote.Mid()
}

// SignedPremium returns the leg's cash flow per share: positive for a
// debit (long), negative for a credit (short)
func (l Leg) SignedPremium() float64 {
	return l.Premium() * float64(l.Quantity) * l.Direction.Sign()
}

// Result is the composed view of a multi-leg strategy. NetPremium is per
// share and signed: positive means the position was entered for a debit.
// Strategy-specific fields (downside protection, annualized return) are
// populated only where the shape defines them.
type Result struct {
	Kind             Kind           `json:"kind"`
	Symbol           string         `json:"symbol"`
	Legs             []Leg          `json:"legs"`
	NetPremium       float64        `json:"net_premium"`
	NetGreeks        options.Greeks `json:"net_greeks"`
	Breakeven        float64        `json:"breakeven"`
	MaxProfit        float64        `json:"max_profit"`
	MaxLoss          float64        `json:"max_loss"`
	MaxLossUnbounded bool           `json:"max_loss_unbounded,omitempty"`

	// Covered call extras
	DownsideProtection float64 `json:"downside_protection,omitempty"` // % of spot covered by premium
	AnnualizedReturn   float64 `json:"annualized_return,omitempty"`   // return-if-called, annualized
}

// validateLegs asserts cross-leg compatibility: non-empty, one underlying,
// one expiration. Calendar spreads are not a supported shape, so expiration
// mismatches are construction errors.
func validateLegs(legs []Leg) error {
	if len(legs) == 0 {
		return &options.ValidationError{Field: "legs", Reason: "strategy requires at least one leg"}
	}
	for _, leg := range legs {
		if !leg.Direction.Valid() {
			return &options.ValidationError{Field: "direction", Reason: "must be long or short"}
		}
		if leg.Quantity <= 0 {
			return &options.ValidationError{Field: "quantity", Reason: "must be positive"}
		}
		if leg.Premium() <= 0 {
			return &options.DataQualityError{Symbol: leg.Contract.Symbol, Reason: "leg has no usable premium"}
		}
		if leg.Contract.Symbol != legs[0].Contract.Symbol {
			return &options.ValidationError{Field: "legs", Reason: "all legs must share one underlying"}
		}
		if !leg.Contract.Expiration.Equal(legs[0].Contract.Expiration) {
			return &options.ValidationError{Field: "legs", Reason: "all legs must share one expiration"}
		}
	}
	return nil
}

// netPremium is the signed per-share sum across legs: long legs are debits,
// short legs credits
func netPremium(legs []Leg) float64 {
	total := 0.0
	for _, leg := range legs {
		total += leg.SignedPremium()
	}
	return total
}

// netGreeks sums per-leg Greeks scaled by quantity and direction sign
func netGreeks(legs []Leg, market analysis.MarketInputs, asof time.Time) (options.Greeks, error) {
	var net options.Greeks
	for _, leg := range legs {
		sigma := market.Volatility
		if sigma == 0 {
			sigma = leg.Contract.Quote.ImpliedVol
		}
		priced, err := options.Price(options.PricingInputs{
			Spot:          market.Spot,
			Strike:        leg.Contract.Strike,
			TimeToExpiry:  leg.Contract.TimeToExpiry(asof),
			Rate:          market.Rate,
			DividendYield: market.DividendYield,
			Volatility:    sigma,
		}, leg.Contract.Type)
		if err != nil {
			return options.Greeks{}, err
		}

		factor := leg.Direction.Sign() * float64(leg.Quantity)
		net.Delta += priced.Greeks.Delta * factor
		net.Gamma += priced.Greeks.Gamma * factor
		net.Theta += priced.Greeks.Theta * factor
		net.Vega += priced.Greeks.Vega * factor
		net.Rho += priced.Greeks.Rho * factor
	}
	return net, nil
}

// Package analysis derives trade-level risk metrics for option positions:
// breakevens, max profit/loss, probability of profit, and payoff curves.
// Like the pricing core it is pure - every call is a function of its inputs
// and the caller-supplied as-of timestamp.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/optionscope/internal/options"
)

// SharesPerContract is the standard US equity option multiplier
const SharesPerContract = 100.0

// payoffCurveSamples - base number of evenly spaced grid points before the
// strike and breakeven are inserted
const payoffCurveSamples = 50

// Direction of a position in a single contract
type Direction string

const (
	// Long - bought the contract, paid the premium
	Long Direction = "long"
	// Short - wrote the contract, collected the premium
	Short Direction = "short"
)

// Valid reports whether the direction is one of the two known values
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Sign returns +1 for long, -1 for short
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// MarketInputs carries the market environment the analyzer prices against.
// Volatility of zero means "use the contract's observed implied vol".
type MarketInputs struct {
	Spot          float64 `json:"spot"`
	Rate          float64 `json:"rate"`
	DividendYield float64 `json:"dividend_yield"`
	Volatility    float64 `json:"volatility,omitempty"`
}

// PayoffPoint is one (terminal spot, P&L) sample of the payoff curve
type PayoffPoint struct {
	Spot float64 `json:"spot"`
	PnL  float64 `json:"pnl"`
}

// SingleLegAnalysis is the full risk picture for one position in one
// contract. MaxProfit/MaxLoss are in account currency for the whole
// position (premium x multiplier x quantity); the Unbounded flags replace
// any "very large number" convention.
type SingleLegAnalysis struct {
	Direction           Direction      `json:"direction"`
	Quantity            int            `json:"quantity"`
	PremiumPerShare     float64        `json:"premium_per_share"`
	Breakeven           float64        `json:"breakeven"`
	MaxProfit           float64        `json:"max_profit"`
	MaxProfitUnbounded  bool           `json:"max_profit_unbounded"`
	MaxLoss             float64        `json:"max_loss"`
	MaxLossUnbounded    bool           `json:"max_loss_unbounded"`
	ProbabilityOfProfit float64        `json:"probability_of_profit"` // 0-100
	Greeks              options.Greeks `json:"greeks"`                // Position Greeks (signed, quantity-scaled)
	Payoff              []PayoffPoint  `json:"payoff"`
}

// AnalyzeSingleLeg computes the risk metrics for a position of `quantity`
// contracts in `contract`, entered at the quote midpoint.
//
// Breakeven is strike plus premium for calls, strike minus premium for
// puts; shorting flips the sign of P&L but keeps the same breakeven price.
// Probability of profit is the risk-neutral probability that the terminal
// spot lands beyond the breakeven, from N(d2) with the breakeven in place
// of the strike - deliberately not delta, which diverges from it away from
// the money.
func AnalyzeSingleLeg(contract options.Contract, direction Direction, quantity int, market MarketInputs, asof time.Time) (SingleLegAnalysis, error) {
	if !direction.Valid() {
		return SingleLegAnalysis{}, &options.ValidationError{Field: "direction", Reason: "must be long or short"}
	}
	if quantity <= 0 {
		return SingleLegAnalysis{}, &options.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !contract.Type.Valid() {
		return SingleLegAnalysis{}, &options.ValidationError{Field: "option_type", Reason: "must be call or put"}
	}

	premium := contract.Quote.Mid()
	if premium <= 0 {
		return SingleLegAnalysis{}, &options.DataQualityError{Symbol: contract.Symbol, Reason: "no usable premium in quote"}
	}

	sigma := market.Volatility
	if sigma == 0 {
		sigma = contract.Quote.ImpliedVol
	}

	inputs := options.PricingInputs{
		Spot:          market.Spot,
		Strike:        contract.Strike,
		TimeToExpiry:  contract.TimeToExpiry(asof),
		Rate:          market.Rate,
		DividendYield: market.DividendYield,
		Volatility:    sigma,
	}
	if err := inputs.Validate(); err != nil {
		return SingleLegAnalysis{}, err
	}

	priced, err := options.Price(inputs, contract.Type)
	if err != nil {
		return SingleLegAnalysis{}, err
	}

	result := SingleLegAnalysis{
		Direction:       direction,
		Quantity:        quantity,
		PremiumPerShare: premium,
		Greeks:          scaleGreeks(priced.Greeks, direction.Sign()*float64(quantity)),
	}

	scale := SharesPerContract * float64(quantity)
	premiumTotal := premium * scale

	switch contract.Type {
	case options.Call:
		result.Breakeven = contract.Strike + premium
		if direction == Long {
			result.MaxProfitUnbounded = true
			result.MaxLoss = premiumTotal
		} else {
			result.MaxProfit = premiumTotal
			result.MaxLossUnbounded = true
		}
	case options.Put:
		result.Breakeven = contract.Strike - premium
		// The underlying cannot fall below zero, so a put's payoff is capped
		capValue := (contract.Strike - premium) * scale
		if direction == Long {
			result.MaxProfit = capValue
			result.MaxLoss = premiumTotal
		} else {
			result.MaxProfit = premiumTotal
			result.MaxLoss = capValue
		}
	}

	result.ProbabilityOfProfit = probabilityOfProfit(inputs, contract.Type, direction, result.Breakeven)
	result.Payoff = payoffCurve(contract, direction, quantity, premium, inputs)

	return result, nil
}

// scaleGreeks multiplies per-contract Greeks into position Greeks
func scaleGreeks(g options.Greeks, factor float64) options.Greeks {
	return options.Greeks{
		Delta: g.Delta * factor,
		Gamma: g.Gamma * factor,
		Theta: g.Theta * factor,
		Vega:  g.Vega * factor,
		Rho:   g.Rho * factor,
	}
}

// probabilityOfProfit returns the 0-100 risk-neutral probability that the
// position expires profitable: the chance that the terminal spot finishes
// beyond the breakeven, in the direction the position needs.
func probabilityOfProfit(in options.PricingInputs, typ options.OptionType, direction Direction, breakeven float64) float64 {
	if breakeven <= 0 {
		// Degenerate breakeven (put premium above strike): a long put can
		// never profit, a short one always keeps some premium
		if direction == Long {
			return 0
		}
		return 100
	}

	beInputs := in
	beInputs.Strike = breakeven

	// P(S_T > breakeven) using the call-style N(d2)
	pAbove := options.ProbabilityITM(beInputs, options.Call)

	var p float64
	profitsAbove := (typ == options.Call && direction == Long) || (typ == options.Put && direction == Short)
	if profitsAbove {
		p = pAbove
	} else {
		p = 1 - pAbove
	}

	return math.Max(0, math.Min(100, p*100))
}

// payoffCurve samples expiration P&L on an even grid spanning +/-3 sigma
// sqrt(T) around spot, then inserts the strike and breakeven so the curve's
// kink and zero crossing are exact samples.
func payoffCurve(contract options.Contract, direction Direction, quantity int, premium float64, in options.PricingInputs) []PayoffPoint {
	spread := 3 * in.Volatility * math.Sqrt(in.TimeToExpiry)
	if spread < 0.15 {
		// Keep the curve readable even for near-expiry or low-vol contracts
		spread = 0.15
	}

	anchors := []float64{contract.Strike, contract.Strike + premium*boundary(contract.Type)}

	// The window widens to cover anchors that fall outside it, so the kink
	// and zero crossing are exact samples no matter how far OTM the
	// contract sits
	lo := math.Max(0, in.Spot*(1-spread))
	hi := in.Spot * (1 + spread)
	for _, anchor := range anchors {
		if anchor >= 0 && anchor < lo {
			lo = anchor
		}
		if anchor > hi {
			hi = anchor
		}
	}

	grid := make([]float64, 0, payoffCurveSamples+2)
	step := (hi - lo) / float64(payoffCurveSamples-1)
	for i := 0; i < payoffCurveSamples; i++ {
		grid = append(grid, lo+float64(i)*step)
	}
	// Pin the endpoints so an anchor sitting on the window edge is an exact
	// sample, not a float-rounding near miss
	grid[len(grid)-1] = hi
	for _, anchor := range anchors {
		if anchor >= lo && anchor <= hi && !sampled(grid, anchor) {
			grid = append(grid, anchor)
		}
	}
	sort.Float64s(grid)

	scale := SharesPerContract * float64(quantity) * direction.Sign()
	curve := make([]PayoffPoint, 0, len(grid))
	for _, s := range grid {
		pnl := (options.IntrinsicValue(s, contract.Strike, contract.Type) - premium) * scale
		curve = append(curve, PayoffPoint{Spot: s, PnL: pnl})
	}
	return curve
}

// sampled reports whether the grid already holds an exact sample at s
func sampled(grid []float64, s float64) bool {
	for _, g := range grid {
		if g == s {
			return true
		}
	}
	return false
}

// boundary returns +1 for calls and -1 for puts, orienting the breakeven
// offset from the strike
func boundary(typ options.OptionType) float64 {
	if typ == options.Put {
		return -1
	}
	return 1
}

// Package options implements closed-form pricing and implied-volatility
// recovery for European-style listed options. All functions are pure:
// results depend only on the supplied inputs and the caller-provided
// as-of timestamp, never on the wall clock.
package options

import (
	"time"
)

// OptionType identifies the contract right
type OptionType string

const (
	// Call - right to buy the underlying at the strike
	Call OptionType = "call"
	// Put - right to sell the underlying at the strike
	Put OptionType = "put"
)

// Valid reports whether the option type is one of the two known values
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

// Quote holds the market data observed for a contract at scan time.
// Zero values mean "not observed", not "zero price".
type Quote struct {
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	ImpliedVol   float64 `json:"implied_vol,omitempty"` // Venue-reported IV (annualized decimal), if any
}

// Mid returns the bid/ask midpoint, falling back to whichever side exists,
// then to the last trade price
func (q Quote) Mid() float64 {
	switch {
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Ask > 0:
		return q.Ask
	case q.Bid > 0:
		return q.Bid
	default:
		return q.Last
	}
}

// Contract is an immutable description of a single listed option plus the
// quote used as input. Construct once per request; never mutated by the core.
type Contract struct {
	Symbol     string     `json:"symbol"` // Underlying ticker (e.g. "SPY")
	OCCSymbol  string     `json:"occ_symbol,omitempty"`
	Strike     float64    `json:"strike"`
	Expiration time.Time  `json:"expiration"`
	Type       OptionType `json:"type"`
	Quote      Quote      `json:"quote"`
}

// DaysToExpiry returns whole calendar days from asof until expiration,
// floored at zero for expired contracts
func (c Contract) DaysToExpiry(asof time.Time) int {
	d := int(c.Expiration.Sub(asof).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// TimeToExpiry returns the year fraction (expiration - asof) / 365,
// floored at zero for expired contracts
func (c Contract) TimeToExpiry(asof time.Time) float64 {
	t := c.Expiration.Sub(asof).Hours() / 24.0 / 365.0
	if t < 0 {
		return 0
	}
	return t
}

// PricingInputs are the six Black-Scholes inputs. TimeToExpiry is in years,
// Rate is continuously compounded, DividendYield is continuous, Volatility
// is annualized decimal. Rate may be any real number; everything else must
// be non-negative. Zero volatility and zero time are valid degenerate inputs.
type PricingInputs struct {
	Spot          float64 `json:"spot"`
	Strike        float64 `json:"strike"`
	TimeToExpiry  float64 `json:"time_to_expiry"`
	Rate          float64 `json:"rate"`
	DividendYield float64 `json:"dividend_yield"`
	Volatility    float64 `json:"volatility"`
}

// Validate rejects inputs the pricing formulas cannot accept.
// Never clamps - bad inputs are the caller's problem to fix.
func (in PricingInputs) Validate() error {
	if in.Spot <= 0 {
		return &ValidationError{Field: "spot", Reason: "must be positive"}
	}
	if in.Strike <= 0 {
		return &ValidationError{Field: "strike", Reason: "must be positive"}
	}
	if in.TimeToExpiry < 0 {
		return &ValidationError{Field: "time_to_expiry", Reason: "must not be negative"}
	}
	if in.Volatility < 0 {
		return &ValidationError{Field: "volatility", Reason: "must not be negative"}
	}
	if in.DividendYield < 0 {
		return &ValidationError{Field: "dividend_yield", Reason: "must not be negative"}
	}
	return nil
}

// Greeks are the price sensitivities in trading conventions:
// theta per calendar day, vega per 1 vol point, rho per 1 rate point.
// They are derived values - recomputing from the same PricingInputs is
// idempotent and they are never persisted on their own.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PricingResult is the output of Price: theoretical value plus Greeks
type PricingResult struct {
	Price  float64 `json:"price"`
	Greeks Greeks  `json:"greeks"`
}

// IVResult is the output of SolveImpliedVol. When Converged is false the
// Volatility field holds the best estimate found; callers decide whether
// to trust it.
type IVResult struct {
	Volatility float64 `json:"volatility"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}

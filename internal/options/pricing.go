package options

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Trading conventions applied to the raw Black-Scholes derivatives
const (
	// DaysPerYear - calendar-day convention used for theta and year fractions
	DaysPerYear = 365.0

	// PointScale - vega and rho are quoted per 1 percentage point move
	PointScale = 0.01
)

// stdNormal is the unit normal used for N(.) and phi(.)
var stdNormal = distuv.UnitNormal

// normCDF is the standard normal cumulative distribution function
func normCDF(x float64) float64 {
	return stdNormal.CDF(x)
}

// normPDF is the standard normal density
func normPDF(x float64) float64 {
	return stdNormal.Prob(x)
}

// d1d2 computes the two Black-Scholes quantiles. Callers must guard
// sigma*sqrt(T) == 0 before calling.
func d1d2(in PricingInputs) (float64, float64) {
	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate-in.DividendYield+0.5*in.Volatility*in.Volatility)*in.TimeToExpiry) /
		(in.Volatility * sqrtT)
	d2 := d1 - in.Volatility*sqrtT
	return d1, d2
}

// Price computes the Black-Scholes theoretical value and Greeks for a
// European option. Two calls with identical inputs return bit-identical
// results.
//
// Degenerate inputs are handled explicitly rather than letting the
// formulas divide by zero:
//   - T = 0: the contract is expired. Price is intrinsic value, delta is
//     the ITM indicator (signed for puts), every other Greek is zero.
//   - sigma = 0: the terminal spot is deterministic, so the option is worth
//     its discounted forward intrinsic value.
func Price(in PricingInputs, typ OptionType) (PricingResult, error) {
	if !typ.Valid() {
		return PricingResult{}, &ValidationError{Field: "option_type", Reason: "must be call or put"}
	}
	if err := in.Validate(); err != nil {
		return PricingResult{}, err
	}

	if in.TimeToExpiry == 0 {
		return expiredResult(in, typ), nil
	}
	if in.Volatility == 0 {
		return zeroVolResult(in, typ), nil
	}

	d1, d2 := d1d2(in)
	sqrtT := math.Sqrt(in.TimeToExpiry)
	discQ := math.Exp(-in.DividendYield * in.TimeToExpiry)
	discR := math.Exp(-in.Rate * in.TimeToExpiry)

	var price, delta, thetaAnnual, rhoRaw float64
	switch typ {
	case Call:
		price = in.Spot*discQ*normCDF(d1) - in.Strike*discR*normCDF(d2)
		delta = discQ * normCDF(d1)
		thetaAnnual = -(in.Spot*discQ*normPDF(d1)*in.Volatility)/(2*sqrtT) -
			in.Rate*in.Strike*discR*normCDF(d2) +
			in.DividendYield*in.Spot*discQ*normCDF(d1)
		rhoRaw = in.Strike * in.TimeToExpiry * discR * normCDF(d2)
	case Put:
		price = in.Strike*discR*normCDF(-d2) - in.Spot*discQ*normCDF(-d1)
		delta = discQ * (normCDF(d1) - 1)
		thetaAnnual = -(in.Spot*discQ*normPDF(d1)*in.Volatility)/(2*sqrtT) +
			in.Rate*in.Strike*discR*normCDF(-d2) -
			in.DividendYield*in.Spot*discQ*normCDF(-d1)
		rhoRaw = -in.Strike * in.TimeToExpiry * discR * normCDF(-d2)
	}

	// The raw derivative goes positive for deep ITM puts at positive rates
	// (and deep ITM calls under heavy dividends): the carry terms outgrow
	// the time-value decay. Reported long theta caps at zero.
	theta := math.Min(thetaAnnual/DaysPerYear, 0)

	greeks := Greeks{
		Delta: delta,
		Gamma: discQ * normPDF(d1) / (in.Spot * in.Volatility * sqrtT),
		Theta: theta,
		Vega:  in.Spot * discQ * normPDF(d1) * sqrtT * PointScale,
		Rho:   rhoRaw * PointScale,
	}

	return PricingResult{Price: price, Greeks: greeks}, nil
}

// IntrinsicValue returns the exercise value of the option at the given spot
func IntrinsicValue(spot, strike float64, typ OptionType) float64 {
	if typ == Call {
		return math.Max(0, spot-strike)
	}
	return math.Max(0, strike-spot)
}

// expiredResult prices a contract at T=0: intrinsic value, indicator delta,
// no remaining sensitivities
func expiredResult(in PricingInputs, typ OptionType) PricingResult {
	res := PricingResult{Price: IntrinsicValue(in.Spot, in.Strike, typ)}
	if typ == Call && in.Spot > in.Strike {
		res.Greeks.Delta = 1
	}
	if typ == Put && in.Spot < in.Strike {
		res.Greeks.Delta = -1
	}
	return res
}

// zeroVolResult prices a contract with sigma=0: the forward is certain, so
// the option is worth its discounted deterministic payoff
func zeroVolResult(in PricingInputs, typ OptionType) PricingResult {
	discQ := math.Exp(-in.DividendYield * in.TimeToExpiry)
	discR := math.Exp(-in.Rate * in.TimeToExpiry)

	var price, delta float64
	switch typ {
	case Call:
		price = math.Max(0, in.Spot*discQ-in.Strike*discR)
		if price > 0 {
			delta = discQ
		}
	case Put:
		price = math.Max(0, in.Strike*discR-in.Spot*discQ)
		if price > 0 {
			delta = -discQ
		}
	}

	return PricingResult{Price: price, Greeks: Greeks{Delta: delta}}
}

// ProbabilityITM returns the risk-neutral probability that the option
// finishes in the money: N(d2) for calls, N(-d2) for puts. This is distinct
// from delta, and the two diverge away from the money.
func ProbabilityITM(in PricingInputs, typ OptionType) float64 {
	if in.TimeToExpiry == 0 || in.Volatility == 0 {
		if IntrinsicValue(in.Spot, in.Strike, typ) > 0 {
			return 1
		}
		return 0
	}
	_, d2 := d1d2(in)
	if typ == Call {
		return normCDF(d2)
	}
	return normCDF(-d2)
}

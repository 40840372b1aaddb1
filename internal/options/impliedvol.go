package options

import (
	"math"
)

// Implied-volatility solver tuning. The tolerance is in price units, not
// vol units: we stop once the model reproduces the market price closely
// enough, whatever sigma that takes.
const (
	// IVInitialGuess seeds Newton-Raphson at a typical equity vol
	IVInitialGuess = 0.30
	// IVPriceTolerance - convergence threshold on |model - market|
	IVPriceTolerance = 1e-4
	// IVMaxIterations caps Newton-Raphson before the bisection fallback
	IVMaxIterations = 100
	// IVMinVol / IVMaxVol bound the search space for both methods
	IVMinVol = 1e-4
	IVMaxVol = 5.0
	// ivVegaFloor - below this the Newton step is numerically meaningless
	ivVegaFloor = 1e-10
	// ivMaxStep clamps a single Newton update so one bad step cannot fling
	// sigma out of the search bounds
	ivMaxStep = 0.5
)

// SolveImpliedVol finds the volatility at which the Black-Scholes model
// reproduces the observed market price. Newton-Raphson from IVInitialGuess;
// if vega underflows or the iteration diverges, it falls back to bisection
// over [IVMinVol, IVMaxVol]. On failure to converge within the caps the
// best estimate is returned with Converged=false - never a silent wrong
// answer and never an error just for non-convergence.
//
// The inputs' Volatility field is ignored; everything else must validate.
func SolveImpliedVol(marketPrice float64, in PricingInputs, typ OptionType) (IVResult, error) {
	if !typ.Valid() {
		return IVResult{}, &ValidationError{Field: "option_type", Reason: "must be call or put"}
	}
	if marketPrice <= 0 {
		return IVResult{}, &ValidationError{Field: "market_price", Reason: "must be positive"}
	}
	in.Volatility = IVInitialGuess
	if err := in.Validate(); err != nil {
		return IVResult{}, err
	}
	if in.TimeToExpiry == 0 {
		// An expired option has no volatility to recover
		return IVResult{Volatility: 0, Converged: false}, nil
	}

	sigma := IVInitialGuess
	iterations := 0

	for ; iterations < IVMaxIterations; iterations++ {
		in.Volatility = sigma
		res, err := Price(in, typ)
		if err != nil {
			return IVResult{}, err
		}

		diff := res.Price - marketPrice
		if math.Abs(diff) < IVPriceTolerance {
			return IVResult{Volatility: sigma, Converged: true, Iterations: iterations + 1}, nil
		}

		// Raw (unscaled) dPrice/dSigma for the Newton step
		rawVega := res.Greeks.Vega / PointScale
		if rawVega < ivVegaFloor {
			// Deep ITM/OTM or tiny T: the price barely moves in sigma.
			// Newton cannot make progress here.
			return bisectImpliedVol(marketPrice, in, typ, iterations)
		}

		step := diff / rawVega
		if math.Abs(step) > ivMaxStep {
			step = math.Copysign(ivMaxStep, step)
		}

		sigma -= step
		if sigma < IVMinVol || sigma > IVMaxVol {
			// Diverged out of the plausible range
			return bisectImpliedVol(marketPrice, in, typ, iterations)
		}
	}

	return IVResult{Volatility: sigma, Converged: false, Iterations: iterations}, nil
}

// bisectImpliedVol is the robust fallback: price is monotone in sigma, so
// plain bisection over the bounded range always makes progress where
// Newton-Raphson cannot
func bisectImpliedVol(marketPrice float64, in PricingInputs, typ OptionType, usedIterations int) (IVResult, error) {
	lo, hi := IVMinVol, IVMaxVol
	best := lo
	iterations := usedIterations

	for ; iterations < IVMaxIterations; iterations++ {
		mid := (lo + hi) / 2
		in.Volatility = mid
		res, err := Price(in, typ)
		if err != nil {
			return IVResult{}, err
		}

		diff := res.Price - marketPrice
		best = mid
		if math.Abs(diff) < IVPriceTolerance {
			return IVResult{Volatility: mid, Converged: true, Iterations: iterations + 1}, nil
		}

		if diff > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}

	return IVResult{Volatility: best, Converged: false, Iterations: iterations}, nil
}

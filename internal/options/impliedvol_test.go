package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveImpliedVol_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		in    PricingInputs
		typ   OptionType
		sigma float64
	}{
		{"atm_call", PricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 0.25, Rate: 0.05}, Call, 0.20},
		{"otm_call", PricingInputs{Spot: 100, Strike: 115, TimeToExpiry: 0.5, Rate: 0.03}, Call, 0.35},
		{"itm_put", PricingInputs{Spot: 90, Strike: 100, TimeToExpiry: 0.75, Rate: 0.02}, Put, 0.28},
		{"high_vol", PricingInputs{Spot: 50, Strike: 45, TimeToExpiry: 1.0, Rate: 0.04}, Call, 0.80},
		{"low_vol", PricingInputs{Spot: 200, Strike: 200, TimeToExpiry: 0.1, Rate: 0.05}, Put, 0.08},
		{"with_dividend", PricingInputs{Spot: 100, Strike: 105, TimeToExpiry: 0.5, Rate: 0.05, DividendYield: 0.03}, Call, 0.22},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			in.Volatility = tc.sigma
			priced, err := Price(in, tc.typ)
			require.NoError(t, err)

			result, err := SolveImpliedVol(priced.Price, tc.in, tc.typ)
			require.NoError(t, err)

			assert.True(t, result.Converged, "solver should converge for a model-generated price")
			assert.InDelta(t, tc.sigma, result.Volatility, 0.001,
				"recovered vol should round-trip to the input vol")
			assert.Greater(t, result.Iterations, 0)
		})
	}
}

func TestSolveImpliedVol_DeepITMFallsBackToBisection(t *testing.T) {
	// Deep ITM with short expiry: vega is nearly zero, Newton cannot step.
	// With almost no time value any answer is mostly noise, but the solver
	// must return a bounded estimate and an honest flag, not panic or lie.
	in := PricingInputs{Spot: 300, Strike: 100, TimeToExpiry: 0.01, Rate: 0.05}
	in.Volatility = 0.25
	priced, err := Price(in, Call)
	require.NoError(t, err)

	result, err := SolveImpliedVol(priced.Price, PricingInputs{Spot: 300, Strike: 100, TimeToExpiry: 0.01, Rate: 0.05}, Call)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Volatility, IVMinVol)
	assert.LessOrEqual(t, result.Volatility, IVMaxVol)
}

func TestSolveImpliedVol_UnreachablePrice(t *testing.T) {
	// A price below intrinsic value has no implied vol. The solver must
	// report non-convergence rather than inventing an answer.
	in := PricingInputs{Spot: 150, Strike: 100, TimeToExpiry: 0.25, Rate: 0.05}

	result, err := SolveImpliedVol(10.0, in, Call) // intrinsic is 50
	require.NoError(t, err)

	assert.False(t, result.Converged)
}

func TestSolveImpliedVol_ExpiredContract(t *testing.T) {
	in := PricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 0}

	result, err := SolveImpliedVol(5.0, in, Call)
	require.NoError(t, err)

	assert.False(t, result.Converged, "expired contract has no volatility to recover")
	assert.Zero(t, result.Volatility)
}

func TestSolveImpliedVol_RejectsBadInputs(t *testing.T) {
	in := PricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 0.25}

	_, err := SolveImpliedVol(-1, in, Call)
	require.Error(t, err)

	_, err = SolveImpliedVol(5, PricingInputs{Spot: -5, Strike: 100, TimeToExpiry: 0.25}, Call)
	require.Error(t, err)
}

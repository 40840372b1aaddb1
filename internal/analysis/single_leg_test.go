package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/optionscope/internal/options"
)

var testAsof = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func testCall(strike, bid, ask float64) options.Contract {
	return options.Contract{
		Symbol:     "SPY",
		Strike:     strike,
		Expiration: testAsof.AddDate(0, 0, 91), // ~0.25y
		Type:       options.Call,
		Quote:      options.Quote{Bid: bid, Ask: ask, Volume: 500, OpenInterest: 1000},
	}
}

func testPut(strike, bid, ask float64) options.Contract {
	c := testCall(strike, bid, ask)
	c.Type = options.Put
	return c
}

func testMarket() MarketInputs {
	return MarketInputs{Spot: 100, Rate: 0.05, Volatility: 0.20}
}

func TestAnalyzeSingleLeg_LongCall(t *testing.T) {
	contract := testCall(100, 4.50, 4.70) // mid 4.60

	result, err := AnalyzeSingleLeg(contract, Long, 1, testMarket(), testAsof)
	require.NoError(t, err)

	assert.InDelta(t, 104.60, result.Breakeven, 1e-9, "long call breakeven is strike + premium")
	assert.True(t, result.MaxProfitUnbounded, "long call upside is unbounded, not a large number")
	assert.False(t, result.MaxLossUnbounded)
	assert.InDelta(t, 460.0, result.MaxLoss, 1e-9, "max loss is the premium paid")
	assert.Greater(t, result.ProbabilityOfProfit, 0.0)
	assert.Less(t, result.ProbabilityOfProfit, 50.0, "OTM-by-breakeven call should profit less than half the time")
	assert.Greater(t, result.Greeks.Delta, 0.0)
}

func TestAnalyzeSingleLeg_LongPut(t *testing.T) {
	contract := testPut(100, 3.30, 3.50) // mid 3.40

	result, err := AnalyzeSingleLeg(contract, Long, 2, testMarket(), testAsof)
	require.NoError(t, err)

	assert.InDelta(t, 96.60, result.Breakeven, 1e-9, "long put breakeven is strike - premium")
	assert.InDelta(t, 680.0, result.MaxLoss, 1e-9)
	// Spot floors at zero, so the put's upside is capped
	assert.False(t, result.MaxProfitUnbounded)
	assert.InDelta(t, 96.60*100*2, result.MaxProfit, 1e-9)
	assert.Less(t, result.Greeks.Delta, 0.0)
}

func TestAnalyzeSingleLeg_ShortInvertsPnLNotBreakeven(t *testing.T) {
	contract := testCall(105, 2.00, 2.20)

	long, err := AnalyzeSingleLeg(contract, Long, 1, testMarket(), testAsof)
	require.NoError(t, err)
	short, err := AnalyzeSingleLeg(contract, Short, 1, testMarket(), testAsof)
	require.NoError(t, err)

	assert.Equal(t, long.Breakeven, short.Breakeven, "shorting keeps the same breakeven price")
	assert.True(t, short.MaxLossUnbounded, "short call loss is unbounded")
	assert.InDelta(t, 210.0, short.MaxProfit, 1e-9, "short call max profit is premium collected")
	assert.InDelta(t, -long.Greeks.Delta, short.Greeks.Delta, 1e-12)
	assert.InDelta(t, 100.0, long.ProbabilityOfProfit+short.ProbabilityOfProfit, 1e-6,
		"long and short POP are complementary")
}

func TestAnalyzeSingleLeg_PayoffCurve(t *testing.T) {
	contract := testCall(100, 4.50, 4.70)

	result, err := AnalyzeSingleLeg(contract, Long, 1, testMarket(), testAsof)
	require.NoError(t, err)

	require.NotEmpty(t, result.Payoff)

	// Grid is sorted and includes the strike and breakeven exactly
	var sawStrike, sawBreakeven bool
	for i, p := range result.Payoff {
		if i > 0 {
			assert.GreaterOrEqual(t, p.Spot, result.Payoff[i-1].Spot, "payoff grid must be ordered")
		}
		if p.Spot == contract.Strike {
			sawStrike = true
			assert.InDelta(t, -460.0, p.PnL, 1e-9, "at the strike a long call loses its premium")
		}
		if p.Spot == result.Breakeven {
			sawBreakeven = true
			assert.InDelta(t, 0.0, p.PnL, 1e-9, "P&L crosses zero at the breakeven")
		}
	}
	assert.True(t, sawStrike, "payoff grid must include the strike")
	assert.True(t, sawBreakeven, "payoff grid must include the breakeven")
}

func TestAnalyzeSingleLeg_PayoffCurveCoversFarOTMAnchors(t *testing.T) {
	// Strike 150 sits outside the +/-3 sigma window around spot 100; the
	// grid must still carry the strike and breakeven as exact samples
	contract := testCall(150, 0.40, 0.60) // mid 0.50, breakeven 150.50

	result, err := AnalyzeSingleLeg(contract, Long, 1, testMarket(), testAsof)
	require.NoError(t, err)

	var sawStrike, sawBreakeven bool
	for _, p := range result.Payoff {
		if p.Spot == contract.Strike {
			sawStrike = true
		}
		if p.Spot == result.Breakeven {
			sawBreakeven = true
			assert.InDelta(t, 0.0, p.PnL, 1e-9, "P&L crosses zero at the breakeven")
		}
	}
	assert.True(t, sawStrike, "far OTM strike must still be sampled")
	assert.True(t, sawBreakeven, "far OTM breakeven must still be sampled")
}

func TestAnalyzeSingleLeg_POPDistinctFromDelta(t *testing.T) {
	// OTM call: the analyzer must use the breakeven-based N(d2), which sits
	// below delta for OTM calls
	contract := testCall(110, 1.00, 1.20)

	result, err := AnalyzeSingleLeg(contract, Long, 1, testMarket(), testAsof)
	require.NoError(t, err)

	assert.Less(t, result.ProbabilityOfProfit/100, result.Greeks.Delta)
}

func TestAnalyzeSingleLeg_Rejections(t *testing.T) {
	contract := testCall(100, 4.50, 4.70)

	_, err := AnalyzeSingleLeg(contract, Direction("sideways"), 1, testMarket(), testAsof)
	require.Error(t, err)

	_, err = AnalyzeSingleLeg(contract, Long, 0, testMarket(), testAsof)
	require.Error(t, err)

	empty := contract
	empty.Quote = options.Quote{}
	_, err = AnalyzeSingleLeg(empty, Long, 1, testMarket(), testAsof)
	var dqErr *options.DataQualityError
	require.ErrorAs(t, err, &dqErr, "contract without a usable quote is a data-quality error")
}

func TestAnalyzeSingleLeg_UsesObservedIVWhenNoVolGiven(t *testing.T) {
	contract := testCall(100, 4.50, 4.70)
	contract.Quote.ImpliedVol = 0.35

	market := MarketInputs{Spot: 100, Rate: 0.05} // no volatility supplied
	result, err := AnalyzeSingleLeg(contract, Long, 1, market, testAsof)
	require.NoError(t, err)

	assert.Greater(t, result.Greeks.Vega, 0.0)
}

package strategy

import (
	"time"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/options"
)

// ComposeCoveredCall combines a share position with a short call written
// against it. `shares` must cover the written contracts (100 shares per
// contract).
//
// Per-share metrics:
//   - breakeven: spot - premium collected
//   - max profit: (strike - spot) + premium, realized if called away
//   - max loss: spot - premium (shares go to zero, premium keeps)
//   - downside protection: premium / spot, as a percent
//   - annualized return: return-if-called scaled by 365/DTE
func ComposeCoveredCall(call options.Contract, contracts int, shares int, market analysis.MarketInputs, asof time.Time) (Result, error) {
	if call.Type != options.Call {
		return Result{}, &options.ValidationError{Field: "legs", Reason: "covered call requires a call contract"}
	}
	if contracts <= 0 {
		return Result{}, &options.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if float64(shares) < float64(contracts)*analysis.SharesPerContract {
		return Result{}, &options.ValidationError{Field: "shares", Reason: "not enough shares to cover the written calls"}
	}
	if market.Spot <= 0 {
		return Result{}, &options.ValidationError{Field: "spot", Reason: "must be positive"}
	}

	legs := []Leg{{Contract: call, Direction: analysis.Short, Quantity: contracts}}
	if err := validateLegs(legs); err != nil {
		return Result{}, err
	}

	greeks, err := netGreeks(legs, market, asof)
	if err != nil {
		return Result{}, err
	}

	premium := call.Quote.Mid()
	scale := analysis.SharesPerContract * float64(contracts)

	result := Result{
		Kind:       CoveredCall,
		Symbol:     call.Symbol,
		Legs:       legs,
		NetPremium: netPremium(legs), // negative: entered for a credit
		NetGreeks:  greeks,
		Breakeven:  market.Spot - premium,
		MaxProfit:  ((call.Strike - market.Spot) + premium) * scale,
		MaxLoss:    (market.Spot - premium) * scale,

		DownsideProtection: premium / market.Spot * 100,
	}

	// Return if called away at the strike, annualized over the holding period
	if dte := call.DaysToExpiry(asof); dte > 0 {
		returnIfCalled := ((call.Strike - market.Spot) + premium) / market.Spot
		result.AnnualizedReturn = returnIfCalled * (options.DaysPerYear / float64(dte)) * 100
	}

	return result, nil
}

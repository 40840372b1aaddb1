package strategy

import (
	"time"

	"github.com/aristath/optionscope/internal/analysis"
	"github.com/aristath/optionscope/internal/options"
)

// ComposeBullCallSpread combines a long call at the lower strike with a
// short call at the higher strike, both on the same underlying and
// expiration. Per-share metrics:
//   - max profit: (short strike - long strike) - net debit
//   - max loss: net debit
//   - breakeven: long strike + net debit
func ComposeBullCallSpread(longCall, shortCall options.Contract, quantity int, market analysis.MarketInputs, asof time.Time) (Result, error) {
	if longCall.Type != options.Call || shortCall.Type != options.Call {
		return Result{}, &options.ValidationError{Field: "legs", Reason: "bull call spread requires two calls"}
	}
	if longCall.Strike >= shortCall.Strike {
		return Result{}, &options.ValidationError{Field: "legs", Reason: "long strike must be below short strike"}
	}

	legs := []Leg{
		{Contract: longCall, Direction: analysis.Long, Quantity: quantity},
		{Contract: shortCall, Direction: analysis.Short, Quantity: quantity},
	}

	return composeVertical(BullCallSpread, legs, market, asof, func(netDebit float64) (breakeven, maxProfit, maxLoss float64) {
		width := shortCall.Strike - longCall.Strike
		return longCall.Strike + netDebit, width - netDebit, netDebit
	})
}

// ComposeBearPutSpread combines a long put at the higher strike with a
// short put at the lower strike. Per-share metrics:
//   - max profit: (long strike - short strike) - net debit
//   - max loss: net debit
//   - breakeven: long strike - net debit
func ComposeBearPutSpread(longPut, shortPut options.Contract, quantity int, market analysis.MarketInputs, asof time.Time) (Result, error) {
	if longPut.Type != options.Put || shortPut.Type != options.Put {
		return Result{}, &options.ValidationError{Field: "legs", Reason: "bear put spread requires two puts"}
	}
	if longPut.Strike <= shortPut.Strike {
		return Result{}, &options.ValidationError{Field: "legs", Reason: "long strike must be above short strike"}
	}

	legs := []Leg{
		{Contract: longPut, Direction: analysis.Long, Quantity: quantity},
		{Contract: shortPut, Direction: analysis.Short, Quantity: quantity},
	}

	return composeVertical(BearPutSpread, legs, market, asof, func(netDebit float64) (breakeven, maxProfit, maxLoss float64) {
		width := longPut.Strike - shortPut.Strike
		return longPut.Strike - netDebit, width - netDebit, netDebit
	})
}

// composeVertical carries the shared plumbing of the two vertical shapes:
// validation, signed premium, net Greeks, and position scaling. `shape`
// maps the per-share net debit to the strategy's analytic metrics.
func composeVertical(kind Kind, legs []Leg, market analysis.MarketInputs, asof time.Time, shape func(netDebit float64) (float64, float64, float64)) (Result, error) {
	if legs[0].Quantity <= 0 {
		return Result{}, &options.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if err := validateLegs(legs); err != nil {
		return Result{}, err
	}

	greeks, err := netGreeks(legs, market, asof)
	if err != nil {
		return Result{}, err
	}

	quantity := legs[0].Quantity
	netDebitPerShare := netPremium(legs) / float64(quantity)
	breakeven, maxProfitPerShare, maxLossPerShare := shape(netDebitPerShare)

	scale := analysis.SharesPerContract * float64(quantity)
	return Result{
		Kind:       kind,
		Symbol:     legs[0].Contract.Symbol,
		Legs:       legs,
		NetPremium: netDebitPerShare,
		NetGreeks:  greeks,
		Breakeven:  breakeven,
		MaxProfit:  maxProfitPerShare * scale,
		MaxLoss:    maxLossPerShare * scale,
	}, nil
}

// Package providers declares the data-source interfaces the analytics core
// consumes. The core never fetches anything itself - implementations are
// injected by the caller, which keeps every computation stateless and
// independently testable.
package providers

import (
	"context"
	"time"

	"github.com/aristath/optionscope/internal/options"
)

// ChainProvider supplies the option chain and spot for one underlying
type ChainProvider interface {
	// GetChain returns the contracts-with-quotes for the underlying,
	// optionally restricted to one expiration (zero time means all)
	GetChain(ctx context.Context, symbol string, expiration time.Time) ([]options.Contract, error)

	// GetSpot returns the underlying's current price
	GetSpot(ctx context.Context, symbol string) (float64, error)
}

// RateProvider supplies the risk-free rate for an as-of date
type RateProvider interface {
	GetRiskFreeRate(ctx context.Context, asof time.Time) (float64, error)
}

// DividendProvider supplies the continuous dividend yield per symbol
type DividendProvider interface {
	GetDividendYield(ctx context.Context, symbol string, asof time.Time) (float64, error)
}

// IndexHistoryProvider supplies historical levels for a volatility index,
// newest last
type IndexHistoryProvider interface {
	GetHistoricalLevels(ctx context.Context, index string, window int) ([]float64, error)
	GetCurrentLevel(ctx context.Context, index string) (float64, error)
}

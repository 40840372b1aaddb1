package providers

import (
	"context"
	"time"
)

// StaticRateProvider returns a fixed risk-free rate regardless of date.
// Good enough for short-dated screens where a few basis points of rate
// error moves scores by less than the bid/ask spread does.
type StaticRateProvider struct {
	Rate float64
}

func (p StaticRateProvider) GetRiskFreeRate(_ context.Context, _ time.Time) (float64, error) {
	return p.Rate, nil
}

// StaticDividendProvider returns per-symbol continuous dividend yields
// from a fixed table, with a default for symbols not listed
type StaticDividendProvider struct {
	Yields  map[string]float64
	Default float64
}

func (p StaticDividendProvider) GetDividendYield(_ context.Context, symbol string, _ time.Time) (float64, error) {
	if y, ok := p.Yields[symbol]; ok {
		return y, nil
	}
	return p.Default, nil
}

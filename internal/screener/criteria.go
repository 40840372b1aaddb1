// Package screener filters a universe of option contracts by structural
// criteria, adapts the criteria to the volatility regime, scores the
// survivors on five weighted factors, and returns a ranked shortlist.
// Per-symbol work fans out over a worker pool; scoring has no cross-symbol
// dependency.
package screener

import (
	"github.com/aristath/optionscope/internal/market_regime"
	"github.com/aristath/optionscope/internal/options"
)

// ScreenType orients the screen: which side of the spot the strikes sit on
// and which premium-selling structure the results feed
type ScreenType string

const (
	// OTMCalls - out-of-the-money calls, covered-call candidates
	OTMCalls ScreenType = "otm_calls"
	// OTMPuts - out-of-the-money puts, cash-secured-put candidates
	OTMPuts ScreenType = "otm_puts"
)

// Valid reports whether the screen type is one of the two known values
func (s ScreenType) Valid() bool {
	return s == OTMCalls || s == OTMPuts
}

// Criteria are the structural filters applied before scoring. Delta bounds
// are absolute values; orientation comes from the screen type.
type Criteria struct {
	Screen          ScreenType `json:"screen"`
	DeltaMin        float64    `json:"delta_min"`
	DeltaMax        float64    `json:"delta_max"`
	DTEMin          int        `json:"dte_min"`
	DTEMax          int        `json:"dte_max"`
	MinVolume       int64      `json:"min_volume"`
	MinOpenInterest int64      `json:"min_open_interest"`
	RegimeAware     bool       `json:"regime_aware"`
	Limit           int        `json:"limit"` // Top N to return, 0 means DefaultLimit
}

// DefaultLimit caps the shortlist when the caller does not say otherwise
const DefaultLimit = 20

// DefaultCriteria - the moderate premium-selling screen: 20-40 delta,
// roughly one to two months out, with enough volume and open interest
// to get filled
func DefaultCriteria(screen ScreenType) Criteria {
	return Criteria{
		Screen:          screen,
		DeltaMin:        0.20,
		DeltaMax:        0.40,
		DTEMin:          21,
		DTEMax:          60,
		MinVolume:       10,
		MinOpenInterest: 100,
		RegimeAware:     true,
		Limit:           DefaultLimit,
	}
}

// Validate rejects empty or inverted bands before any filtering runs
func (c Criteria) Validate() error {
	if !c.Screen.Valid() {
		return &options.ConfigurationError{Field: "screen", Reason: "must be otm_calls or otm_puts"}
	}
	if c.DeltaMin < 0 || c.DeltaMax > 1 {
		return &options.ConfigurationError{Field: "delta_band", Reason: "must lie within [0, 1]"}
	}
	if c.DeltaMin > c.DeltaMax {
		return &options.ConfigurationError{Field: "delta_band", Reason: "min must not exceed max"}
	}
	if c.DTEMin < 0 || c.DTEMin > c.DTEMax {
		return &options.ConfigurationError{Field: "dte_band", Reason: "min must not exceed max"}
	}
	if c.MinVolume < 0 || c.MinOpenInterest < 0 {
		return &options.ConfigurationError{Field: "liquidity", Reason: "thresholds must not be negative"}
	}
	if c.Limit < 0 {
		return &options.ConfigurationError{Field: "limit", Reason: "must not be negative"}
	}
	return nil
}

// Regime adjustment offsets. A stressed market narrows the delta band
// toward conservative OTM strikes and shortens the DTE ceiling; a calm
// one loosens both.
const (
	lowRegimeDeltaWiden  = 0.05
	lowRegimeDTEExtend   = 15
	elevatedDeltaNarrow  = 0.05
	elevatedDTEShorten   = 10
	highRegimeDeltaCap   = 0.10
	highRegimeDTEShorten = 20
)

// AdjustForRegime returns criteria biased by the volatility regime. The
// original criteria are never mutated, and the adjusted band is clamped so
// it can never invert.
func (c Criteria) AdjustForRegime(regime market_regime.Regime) Criteria {
	if !c.RegimeAware {
		return c
	}

	adjusted := c
	switch regime {
	case market_regime.RegimeLow:
		adjusted.DeltaMax = c.DeltaMax + lowRegimeDeltaWiden
		adjusted.DTEMax = c.DTEMax + lowRegimeDTEExtend
	case market_regime.RegimeElevated:
		adjusted.DeltaMax = c.DeltaMax - elevatedDeltaNarrow
		adjusted.DTEMax = c.DTEMax - elevatedDTEShorten
	case market_regime.RegimeHigh:
		adjusted.DeltaMax = c.DeltaMax - highRegimeDeltaCap
		adjusted.DTEMax = c.DTEMax - highRegimeDTEShorten
	}

	// Clamp so the adjusted bands stay usable
	if adjusted.DeltaMax > 1 {
		adjusted.DeltaMax = 1
	}
	if adjusted.DeltaMax < adjusted.DeltaMin {
		adjusted.DeltaMax = adjusted.DeltaMin
	}
	if adjusted.DTEMax < adjusted.DTEMin {
		adjusted.DTEMax = adjusted.DTEMin
	}
	return adjusted
}

// DeltaTarget is the center of the delta band, used for ranking tie-breaks
func (c Criteria) DeltaTarget() float64 {
	return (c.DeltaMin + c.DeltaMax) / 2
}

// Package market_regime classifies the current volatility environment from
// a volatility index reading and its historical distribution. The output
// biases screening criteria: high-vol regimes push screens toward more
// conservative strikes and shorter expirations.
package market_regime

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/montanaflynn/stats"

	"github.com/aristath/optionscope/internal/options"
)

// Regime is a discretized volatility bucket, ordered from calm to stressed
type Regime string

const (
	RegimeLow      Regime = "low"
	RegimeNormal   Regime = "normal"
	RegimeElevated Regime = "elevated"
	RegimeHigh     Regime = "high"
)

// Rank returns the regime's position on the calm-to-stressed scale.
// Classification is monotonic in this rank: a higher percentile never maps
// to a lower rank.
func (r Regime) Rank() int {
	switch r {
	case RegimeLow:
		return 0
	case RegimeNormal:
		return 1
	case RegimeElevated:
		return 2
	case RegimeHigh:
		return 3
	default:
		return -1
	}
}

// tradingImplications - canned guidance per regime, surfaced to the
// dashboard alongside the classification
var tradingImplications = map[Regime]string{
	RegimeLow:      "Volatility is cheap: favor long premium and debit spreads; collected premium is thin.",
	RegimeNormal:   "Typical conditions: standard criteria apply, no regime adjustment needed.",
	RegimeElevated: "Premium is rich but so is risk: favor defined-risk credit structures, size down.",
	RegimeHigh:     "Stressed market: sell premium only at conservative strikes and short expirations, or stand aside.",
}

// Mode selects which scale the threshold bands apply to
type Mode string

const (
	// ModePercentile - bands are percentile ranks within the historical window
	ModePercentile Mode = "percentile"
	// ModeAbsolute - bands are absolute index levels (e.g. VIX points)
	ModeAbsolute Mode = "absolute"
)

// Thresholds are the ordered band edges separating the four regimes.
// A reading at or below LowMax is low, at or below NormalMax is normal,
// at or below ElevatedMax is elevated, above it high.
type Thresholds struct {
	Mode        Mode    `json:"mode"`
	LowMax      float64 `json:"low_max"`
	NormalMax   float64 `json:"normal_max"`
	ElevatedMax float64 `json:"elevated_max"`
}

// DefaultThresholds - percentile bands at the 25th/60th/85th, the
// conventional quartile-ish split for volatility indices
func DefaultThresholds() Thresholds {
	return Thresholds{Mode: ModePercentile, LowMax: 25, NormalMax: 60, ElevatedMax: 85}
}

// Validate rejects unordered or out-of-range bands
func (t Thresholds) Validate() error {
	if t.Mode != ModePercentile && t.Mode != ModeAbsolute {
		return &options.ConfigurationError{Field: "mode", Reason: "must be percentile or absolute"}
	}
	if !(t.LowMax < t.NormalMax && t.NormalMax < t.ElevatedMax) {
		return &options.ConfigurationError{Field: "thresholds", Reason: "bands must be strictly increasing"}
	}
	if t.Mode == ModePercentile && (t.LowMax <= 0 || t.ElevatedMax >= 100) {
		return &options.ConfigurationError{Field: "thresholds", Reason: "percentile bands must lie inside (0, 100)"}
	}
	return nil
}

// Classification is the derived regime view. It is a pure function of the
// (current level, historical window) pair - nothing survives across calls.
type Classification struct {
	Level       float64 `json:"level"`
	Percentile  float64 `json:"percentile"` // 0-100 rank within the window
	Regime      Regime  `json:"regime"`
	Implication string  `json:"implication"`

	// Window summary, for display
	WindowMean   float64 `json:"window_mean"`
	WindowMedian float64 `json:"window_median"`
	WindowMin    float64 `json:"window_min"`
	WindowMax    float64 `json:"window_max"`
	RealizedVol  float64 `json:"realized_vol"` // annualized vol-of-vol over the window
	SampleSize   int     `json:"sample_size"`
}

// Classify maps the current index level and its historical window to a
// regime. The percentile is the fraction of historical samples at or below
// the current level. Strictly higher readings never classify calmer.
func Classify(current float64, window []float64, thresholds Thresholds) (Classification, error) {
	if err := thresholds.Validate(); err != nil {
		return Classification{}, err
	}
	if current <= 0 {
		return Classification{}, &options.ValidationError{Field: "current_level", Reason: "must be positive"}
	}
	if len(window) == 0 {
		return Classification{}, &options.ValidationError{Field: "historical_window", Reason: "must not be empty"}
	}

	percentile := percentileRank(current, window)

	reading := percentile
	if thresholds.Mode == ModeAbsolute {
		reading = current
	}

	var regime Regime
	switch {
	case reading <= thresholds.LowMax:
		regime = RegimeLow
	case reading <= thresholds.NormalMax:
		regime = RegimeNormal
	case reading <= thresholds.ElevatedMax:
		regime = RegimeElevated
	default:
		regime = RegimeHigh
	}

	mean, _ := stats.Mean(window)
	median, _ := stats.Median(window)
	lo, _ := stats.Min(window)
	hi, _ := stats.Max(window)

	return Classification{
		Level:        current,
		Percentile:   percentile,
		Regime:       regime,
		Implication:  tradingImplications[regime],
		WindowMean:   mean,
		WindowMedian: median,
		WindowMin:    lo,
		WindowMax:    hi,
		RealizedVol:  realizedVol(window),
		SampleSize:   len(window),
	}, nil
}

// percentileRank returns the 0-100 fraction of samples at or below value
func percentileRank(value float64, window []float64) float64 {
	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)

	// First index strictly above value
	idx := sort.SearchFloat64s(sorted, math.Nextafter(value, math.Inf(1)))
	return float64(idx) / float64(len(sorted)) * 100
}

// tradingDaysPerYear annualizes daily vol-of-vol
const tradingDaysPerYear = 252.0

// realizedVol is the annualized standard deviation of the window's daily
// log changes - how jumpy the index itself has been, shown next to its
// level on the dashboard
func realizedVol(window []float64) float64 {
	if len(window) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] > 0 && window[i] > 0 {
			returns = append(returns, math.Log(window[i]/window[i-1]))
		}
	}
	if len(returns) < 2 {
		return 0
	}

	stddev := talib.StdDev(returns, len(returns), 1)
	last := stddev[len(stddev)-1]
	if math.IsNaN(last) {
		return 0
	}
	return last * math.Sqrt(tradingDaysPerYear)
}

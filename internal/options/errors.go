package options

import "fmt"

// ValidationError reports an input that the math cannot accept (negative
// strike, expired-but-not-flagged contract, mismatched strategy legs).
// Validation always happens before computation; values are never clamped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports screening or classification configuration that
// cannot be applied, such as an inverted band (min > max).
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bad configuration %s: %s", e.Field, e.Reason)
}

// DataQualityError reports a contract whose quote data is too thin to score
// (no volume, no open interest, no last price). During batch screening these
// are isolated per contract - the contract is dropped, the batch continues.
type DataQualityError struct {
	Symbol string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("unusable quote data for %s: %s", e.Symbol, e.Reason)
}

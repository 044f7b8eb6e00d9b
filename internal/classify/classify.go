// Package classify maps a measurement against its reference range.
package classify

// Risk flag values stored on measurements.
const (
	RiskNormal  = "normal"
	RiskLow     = "low"
	RiskHigh    = "high"
	RiskUnknown = "unknown"
)

// Classify returns the risk flag for a value against its reference
// bounds. Values equal to a bound are normal. Callers must pre-normalize
// value and bounds to the same unit; no conversion happens here.
func Classify(value float64, refMin, refMax *float64) string {
	if refMin == nil || refMax == nil {
		return RiskUnknown
	}
	if value < *refMin {
		return RiskLow
	}
	if value > *refMax {
		return RiskHigh
	}
	return RiskNormal
}

// Package tolerance derives the acceptance radius for a clock-in attempt from
// the device-reported GPS accuracy and the administrator-configured base
// tolerance.
package tolerance

import "math"

const (
	// MinToleranceMeters is the floor applied to the GPS-derived tolerance so
	// excellent fixes still get a workable acceptance radius.
	MinToleranceMeters = 10.0

	// MaxToleranceMeters caps the final tolerance regardless of inputs. Poor
	// indoor accuracy must not grow the acceptance radius unbounded.
	MaxToleranceMeters = 150.0

	// accuracyFactor scales device accuracy into a tolerance contribution.
	accuracyFactor = 0.5
)

// Result holds the derived tolerance values.
type Result struct {
	FinalToleranceMeters      float64 `json:"final_tolerance_m"`
	GPSDerivedToleranceMeters float64 `json:"gps_derived_tolerance_m"`
}

// Calculate combines GPS accuracy and the admin base tolerance into the final
// acceptance radius. The larger of the two always wins, bounded to
// [MinToleranceMeters, MaxToleranceMeters]. Pure and total.
func Calculate(gpsAccuracyMeters, adminToleranceMeters float64) Result {
	gpsTolerance := math.Max(gpsAccuracyMeters*accuracyFactor, MinToleranceMeters)
	raw := math.Max(gpsTolerance, adminToleranceMeters)

	return Result{
		FinalToleranceMeters:      math.Min(raw, MaxToleranceMeters),
		GPSDerivedToleranceMeters: gpsTolerance,
	}
}

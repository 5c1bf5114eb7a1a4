// Package gps implements location acquisition and plausibility validation for
// clock-in attempts: one-shot and watch-based reads over a device positioning
// provider, sequential multi-reading averaging with a short debounce cache,
// and a heuristic scorer that flags spoofed location signals.
package gps

import (
	"time"

	"github.com/fieldclock/fieldclock/pkg/geo"
)

// Reading is a single raw sample from the positioning provider. Optional
// fields are nil when the device does not report them.
type Reading struct {
	Point                  geo.Point `json:"point"`
	AccuracyMeters         float64   `json:"accuracy_m"`
	AltitudeMeters         *float64  `json:"altitude_m,omitempty"`
	AltitudeAccuracyMeters *float64  `json:"altitude_accuracy_m,omitempty"`
	SpeedMps               *float64  `json:"speed_mps,omitempty"`
	HeadingDeg             *float64  `json:"heading_deg,omitempty"`
	CapturedAt             time.Time `json:"captured_at"`
}

// AveragedLocation is the arithmetic mean of 1..N readings. SampleCount
// records how many readings contributed.
type AveragedLocation struct {
	Point          geo.Point `json:"point"`
	AccuracyMeters float64   `json:"accuracy_m"`
	CapturedAt     time.Time `json:"captured_at"`
	SampleCount    int       `json:"sample_count"`
}

// Options controls a single positioning request.
type Options struct {
	HighAccuracy bool          `json:"high_accuracy"`
	Timeout      time.Duration `json:"timeout"`
	MaxAge       time.Duration `json:"max_age"`
}

// EnhancedConfig controls the top-level acquisition flow.
type EnhancedConfig struct {
	HighAccuracy        bool          `json:"high_accuracy"`
	Timeout             time.Duration `json:"timeout"`
	MaxAge              time.Duration `json:"max_age"`
	UseMultipleReadings bool          `json:"use_multiple_readings"`
	ReadingsCount       int           `json:"readings_count"`
	ReadingInterval     time.Duration `json:"reading_interval"`
}

// DefaultEnhancedConfig returns the default acquisition configuration.
func DefaultEnhancedConfig() *EnhancedConfig {
	return &EnhancedConfig{
		HighAccuracy:        true,
		Timeout:             15 * time.Second,
		MaxAge:              0,
		UseMultipleReadings: true,
		ReadingsCount:       3,
		ReadingInterval:     500 * time.Millisecond,
	}
}

func (c *EnhancedConfig) options() Options {
	return Options{
		HighAccuracy: c.HighAccuracy,
		Timeout:      c.Timeout,
		MaxAge:       c.MaxAge,
	}
}

// Average combines readings into an AveragedLocation by independent
// arithmetic mean of latitude, longitude and accuracy. Returns the zero value
// when readings is empty.
func Average(readings []Reading) AveragedLocation {
	if len(readings) == 0 {
		return AveragedLocation{}
	}

	var sumLat, sumLng, sumAcc float64
	for _, r := range readings {
		sumLat += r.Point.Lat
		sumLng += r.Point.Lng
		sumAcc += r.AccuracyMeters
	}

	n := float64(len(readings))
	return AveragedLocation{
		Point:          geo.Point{Lat: sumLat / n, Lng: sumLng / n},
		AccuracyMeters: sumAcc / n,
		CapturedAt:     readings[len(readings)-1].CapturedAt,
		SampleCount:    len(readings),
	}
}

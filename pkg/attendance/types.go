// Package attendance implements the clock-in/clock-out flow fed by the
// location core: plausibility verdict, containment decision, persistence and
// event publishing.
package attendance

import (
	"time"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/gps"
)

// EventKind distinguishes clock events.
type EventKind string

const (
	ClockIn  EventKind = "clock_in"
	ClockOut EventKind = "clock_out"
)

// Status is the outcome recorded for a clock attempt. Attempts are always
// recorded; denial is a status, never a dropped record.
type Status string

const (
	// StatusAccepted: inside an authorized area with a plausible reading.
	StatusAccepted Status = "accepted"
	// StatusFlagged: inside an area but the reading looks mocked.
	StatusFlagged Status = "flagged"
	// StatusRejected: outside every authorized area.
	StatusRejected Status = "rejected"
)

// Record is one persisted clock attempt with the decision alongside the raw
// reading snapshot.
type Record struct {
	ID              string    `json:"id"`
	StaffID         string    `json:"staff_id"`
	Kind            EventKind `json:"kind"`
	Status          Status    `json:"status"`
	Point           geo.Point `json:"point"`
	AccuracyMeters  float64   `json:"accuracy_m"`
	SampleCount     int       `json:"sample_count"`
	ConfidenceScore int       `json:"confidence_score"`
	IsMocked        bool      `json:"is_mocked"`
	Reasons         []string  `json:"reasons,omitempty"`
	IsInside        bool      `json:"is_inside"`
	AreaName        string    `json:"area_name,omitempty"`
	DistanceToEdge  *float64  `json:"distance_to_edge_m,omitempty"`
	Address         string    `json:"address,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// ClockRequest is a clock attempt. Reading carries the client-supplied sample
// (mobile app flow); when nil the service acquires one through the device
// engine (kiosk flow).
type ClockRequest struct {
	StaffID string       `json:"staff_id"`
	Kind    EventKind    `json:"kind"`
	Reading *gps.Reading `json:"reading,omitempty"`
}

// DayScore is the gamified daily presence score. Only the location-derived
// components live here; payroll weighting is out of scope.
type DayScore struct {
	StaffID string    `json:"staff_id"`
	Date    string    `json:"date"` // YYYY-MM-DD
	Score   int       `json:"score"`
	Updated time.Time `json:"updated"`
}

// Package geofence decides whether a located clock-in attempt falls inside an
// authorized work area, combining the geometry kernel with stored area
// definitions and GPS-accuracy-aware leniency.
package geofence

import (
	"fmt"
	"time"

	"github.com/dhconnelly/rtreego"

	"github.com/fieldclock/fieldclock/pkg/geo"
)

// ShapeKind tags the geofence shape variant.
type ShapeKind string

const (
	ShapeCircle  ShapeKind = "circle"
	ShapePolygon ShapeKind = "polygon"
)

// Shape is the tagged circle-or-polygon variant of an area boundary. Exactly
// the fields for the tagged kind are meaningful.
type Shape struct {
	Kind ShapeKind `json:"kind"`

	// Circle fields.
	Center       geo.Point `json:"center,omitempty"`
	RadiusMeters float64   `json:"radius_m,omitempty"`

	// Polygon fields. Vertices form a simple ring; the engine auto-closes it.
	Vertices []geo.Point `json:"vertices,omitempty"`
}

// Validate checks that the shape is well formed for its kind.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeCircle:
		if !s.Center.Valid() {
			return fmt.Errorf("circle center out of range: %+v", s.Center)
		}
		if s.RadiusMeters <= 0 {
			return fmt.Errorf("circle radius must be positive, got %v", s.RadiusMeters)
		}
	case ShapePolygon:
		if geo.SanitizeRing(s.Vertices) == nil {
			return fmt.Errorf("polygon needs at least 3 distinct valid vertices, got %d", len(s.Vertices))
		}
	default:
		return fmt.Errorf("unknown shape kind %q", s.Kind)
	}
	return nil
}

// Ring returns the area boundary as a closed polygon ring. Circles are
// approximated with the default step count. Returns nil for degenerate
// shapes.
func (s Shape) Ring() []geo.Point {
	switch s.Kind {
	case ShapeCircle:
		if s.RadiusMeters <= 0 || !s.Center.Valid() {
			return nil
		}
		return geo.CircleToPolygon(s.Center, s.RadiusMeters, 0)
	case ShapePolygon:
		return geo.SanitizeRing(s.Vertices)
	}
	return nil
}

// Area is an administrator-defined work area. Records are persisted in the
// area store and read-only to the containment engine.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Shape     Shape     `json:"shape"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// boundsMarginMeters pads area bounding boxes so accuracy-expanded matches
// near the border still surface as index candidates. Matches the tolerance
// ceiling.
const boundsMarginMeters = 150.0

// Bounds implements rtreego.Spatial over the area's padded bounding box.
func (a *Area) Bounds() *rtreego.Rect {
	ring := a.Shape.Ring()
	if ring == nil {
		rect, _ := rtreego.NewRect(rtreego.Point{0, 0}, []float64{1e-9, 1e-9})
		return rect
	}

	minLat, minLng := ring[0].Lat, ring[0].Lng
	maxLat, maxLng := minLat, minLng
	for _, v := range ring[1:] {
		if v.Lat < minLat {
			minLat = v.Lat
		}
		if v.Lat > maxLat {
			maxLat = v.Lat
		}
		if v.Lng < minLng {
			minLng = v.Lng
		}
		if v.Lng > maxLng {
			maxLng = v.Lng
		}
	}

	// Degree padding from the meter margin, latitude-corrected for longitude.
	latPad := boundsMarginMeters / 111320.0
	lngPad := latPad * 2 // conservative at mid latitudes

	rect, err := rtreego.NewRect(
		rtreego.Point{minLat - latPad, minLng - lngPad},
		[]float64{(maxLat - minLat) + 2*latPad, (maxLng - minLng) + 2*lngPad},
	)
	if err != nil {
		rect, _ = rtreego.NewRect(rtreego.Point{minLat, minLng}, []float64{1e-9, 1e-9})
	}
	return rect
}

package geofence

import (
	"math"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/logx"
	"github.com/fieldclock/fieldclock/pkg/telem"
	"github.com/fieldclock/fieldclock/pkg/tolerance"
)

// Buffer gating constants. A large-accuracy reading near the boundary of a
// big area should not be rejected outright, but buffering a small area would
// swallow it entirely. Empirically chosen in production; preserved exactly.
const (
	bufferAccuracyGateMeters = 10.0  // apply buffering only above this accuracy
	bufferSizeGateMeters     = 100.0 // and only for areas larger than this
	bufferCapMeters          = 25.0  // never shrink by more than this
)

// Decision is the containment outcome for one evaluation. Evaluation never
// fails; out-of-area is a decision, not an error.
type Decision struct {
	IsInside             bool     `json:"is_inside"`
	MatchedAreaName      string   `json:"matched_area_name,omitempty"`
	DistanceToEdgeMeters *float64 `json:"distance_to_edge_m,omitempty"`
}

// Engine evaluates containment of located points against area definitions.
type Engine struct {
	logger  *logx.Logger
	metrics *telem.Metrics
}

// NewEngine creates a containment engine.
func NewEngine(logger *logx.Logger, metrics *telem.Metrics) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// InsideArea reports whether the point, with its reported accuracy, lies
// inside the area. Circles and polygons take different leniency paths:
// circles expand their acceptance radius by the adaptive tolerance, polygons
// get an accuracy-gated inward shrink so boundary readings on large areas
// survive without small areas being swallowed.
func (e *Engine) InsideArea(p geo.Point, accuracyMeters float64, area *Area, adminToleranceMeters float64) bool {
	switch area.Shape.Kind {
	case ShapeCircle:
		tol := tolerance.Calculate(accuracyMeters, adminToleranceMeters)
		dist := geo.Haversine(p, area.Shape.Center)
		return dist <= area.Shape.RadiusMeters+tol.FinalToleranceMeters

	case ShapePolygon:
		ring := geo.SanitizeRing(area.Shape.Vertices)
		if ring == nil {
			return false
		}

		polygonSize := math.Sqrt(geo.PolygonArea(ring))
		if accuracyMeters > bufferAccuracyGateMeters && polygonSize > bufferSizeGateMeters {
			bufferAmount := math.Min(accuracyMeters*0.5, bufferCapMeters)
			if buffered := geo.BufferPolygon(ring, -bufferAmount); buffered != nil {
				ring = buffered
			}
			// A degenerate buffer keeps the original ring.
		}

		return geo.PointInPolygon(p, ring)
	}

	return false
}

// Evaluate checks the point against the areas in caller-defined order; the
// first active match wins. The decision carries the matched area name and the
// distance to the nearest area edge, matched or not.
func (e *Engine) Evaluate(p geo.Point, accuracyMeters float64, areas []*Area, adminToleranceMeters float64) Decision {
	nearest := math.Inf(1)

	for _, area := range areas {
		if !area.Active {
			continue
		}

		if d := e.distanceToEdge(p, area); d < nearest {
			nearest = d
		}

		if e.InsideArea(p, accuracyMeters, area, adminToleranceMeters) {
			decision := Decision{IsInside: true, MatchedAreaName: area.Name}
			if d := e.distanceToEdge(p, area); !math.IsInf(d, 1) {
				decision.DistanceToEdgeMeters = &d
			}

			e.metrics.ObserveDecision(true)
			e.logger.Debug("point inside area",
				"area", area.Name,
				"accuracy_m", accuracyMeters)
			return decision
		}
	}

	decision := Decision{IsInside: false}
	if !math.IsInf(nearest, 1) {
		decision.DistanceToEdgeMeters = &nearest
	}

	e.metrics.ObserveDecision(false)
	e.logger.Debug("point outside all areas",
		"accuracy_m", accuracyMeters,
		"nearest_edge_m", nearest)
	return decision
}

func (e *Engine) distanceToEdge(p geo.Point, area *Area) float64 {
	ring := area.Shape.Ring()
	if ring == nil {
		return math.Inf(1)
	}
	return geo.DistanceToPolygonEdge(p, ring)
}

package geo

import "math"

// SanitizeRing drops invalid vertices and closes the ring if the last vertex
// differs from the first. Returns nil when fewer than 3 distinct valid
// vertices remain.
func SanitizeRing(ring []Point) []Point {
	out := make([]Point, 0, len(ring)+1)
	for _, v := range ring {
		if v.Valid() {
			out = append(out, v)
		}
	}
	// Drop an existing closure before counting distinct vertices.
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if countDistinct(out) < 3 {
		return nil
	}
	return append(out, out[0])
}

func countDistinct(ring []Point) int {
	seen := make(map[Point]struct{}, len(ring))
	for _, v := range ring {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// PointInPolygon reports whether p lies inside the closed ring using ray
// casting. Rings with fewer than 3 distinct vertices are never containing.
func PointInPolygon(p Point, ring []Point) bool {
	ring = SanitizeRing(ring)
	if ring == nil {
		return false
	}

	inside := false
	n := len(ring) - 1 // last vertex duplicates the first
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := ring[i], ring[j]
		if (vi.Lng > p.Lng) != (vj.Lng > p.Lng) {
			crossLat := (vj.Lat-vi.Lat)*(p.Lng-vi.Lng)/(vj.Lng-vi.Lng) + vi.Lat
			if p.Lat < crossLat {
				inside = !inside
			}
		}
	}
	return inside
}

// project maps a point into a local tangent plane (meters) around ref using
// an equirectangular approximation, adequate at campus scale.
func project(p, ref Point) (x, y float64) {
	x = toRad(p.Lng-ref.Lng) * EarthRadiusMeters * math.Cos(toRad(ref.Lat))
	y = toRad(p.Lat-ref.Lat) * EarthRadiusMeters
	return x, y
}

// PolygonArea returns the area of the ring in square meters, or 0 for an
// invalid ring.
func PolygonArea(ring []Point) float64 {
	ring = SanitizeRing(ring)
	if ring == nil {
		return 0
	}

	ref := ring[0]
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := project(ring[i], ref)
		x2, y2 := project(ring[i+1], ref)
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2
}

// PolygonCentroid returns the arithmetic centroid of the ring's distinct
// vertices. ok is false when the ring has fewer than 3 valid vertices.
func PolygonCentroid(ring []Point) (Point, bool) {
	ring = SanitizeRing(ring)
	if ring == nil {
		return Point{}, false
	}

	var sumLat, sumLng float64
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		sumLat += ring[i].Lat
		sumLng += ring[i].Lng
	}
	return Point{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}, true
}

// BufferPolygon grows (deltaMeters > 0) or shrinks (deltaMeters < 0) the ring
// by moving each vertex along its ray from the centroid. Returns nil when
// shrinking collapses the ring to zero or negative area; the caller falls
// back to the unbuffered ring in that case.
func BufferPolygon(ring []Point, deltaMeters float64) []Point {
	ring = SanitizeRing(ring)
	if ring == nil {
		return nil
	}

	centroid, ok := PolygonCentroid(ring)
	if !ok {
		return nil
	}

	out := make([]Point, 0, len(ring))
	for i := 0; i < len(ring)-1; i++ {
		dist := Haversine(centroid, ring[i])
		scaled := dist + deltaMeters
		if scaled <= 0 {
			return nil
		}
		bearing := initialBearing(centroid, ring[i])
		out = append(out, Destination(centroid, scaled, bearing))
	}
	out = append(out, out[0])

	if PolygonArea(out) <= 0 {
		return nil
	}
	return out
}

// initialBearing returns the initial great-circle bearing from a to b in
// degrees clockwise from north.
func initialBearing(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// DistanceToPolygonEdge returns the distance in meters from p to the nearest
// ring edge, or +Inf when the ring is invalid.
func DistanceToPolygonEdge(p Point, ring []Point) float64 {
	ring = SanitizeRing(ring)
	if ring == nil {
		return math.Inf(1)
	}

	px, py := project(p, p)
	minDist := math.Inf(1)
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := project(ring[i], p)
		x2, y2 := project(ring[i+1], p)
		if d := pointToSegment(px, py, x1, y1, x2, y2); d < minDist {
			minDist = d
		}
	}
	return minDist
}

func pointToSegment(px, py, x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	if dx == 0 && dy == 0 {
		return math.Hypot(px-x1, py-y1)
	}

	t := ((px-x1)*dx + (py-y1)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}

// CircleToPolygon approximates a circle as a regular polygon with the given
// number of steps (32 when steps <= 0), letting circles and polygons share
// one containment path.
func CircleToPolygon(center Point, radiusMeters float64, steps int) []Point {
	if steps <= 0 {
		steps = 32
	}

	ring := make([]Point, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := float64(i) * 360 / float64(steps)
		ring = append(ring, Destination(center, radiusMeters, bearing))
	}
	return append(ring, ring[0])
}

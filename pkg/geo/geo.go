// Package geo implements the spherical-earth geometry kernel used by the
// geofence containment engine. All distance math uses the haversine
// approximation with a mean Earth radius so accept/reject boundaries stay
// consistent across components. No projection step is performed; at office
// campus scale (a few hundred meters) the spherical approximation is
// sufficient.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is a finite coordinate inside the
// geographic domain.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Destination returns the point reached by travelling distanceMeters from
// origin along the given initial bearing (degrees clockwise from north).
func Destination(origin Point, distanceMeters, bearingDeg float64) Point {
	delta := distanceMeters / EarthRadiusMeters
	theta := toRad(bearingDeg)
	lat1 := toRad(origin.Lat)
	lng1 := toRad(origin.Lng)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Lat: toDeg(lat2), Lng: toDeg(lng2)}
}

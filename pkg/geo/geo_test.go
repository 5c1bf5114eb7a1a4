package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineIdentity(t *testing.T) {
	points := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 52.52, Lng: 13.405},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: -179.9},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Haversine(p, p))
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Paris to London, roughly 344 km.
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}

	dist := Haversine(paris, london)
	assert.InDelta(t, 344000, dist, 2000)

	// Symmetric.
	assert.InDelta(t, dist, Haversine(london, paris), 1e-9)
}

func TestDestinationRoundTrip(t *testing.T) {
	origin := Point{Lat: 59.3293, Lng: 18.0686}

	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		dest := Destination(origin, 500, bearing)
		assert.InDelta(t, 500, Haversine(origin, dest), 0.01,
			"bearing %v", bearing)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		valid bool
	}{
		{"origin", Point{0, 0}, true},
		{"extremes", Point{90, 180}, true},
		{"negative extremes", Point{-90, -180}, true},
		{"lat too high", Point{90.1, 0}, false},
		{"lng too low", Point{0, -180.5}, false},
		{"nan lat", Point{math.NaN(), 0}, false},
		{"inf lng", Point{0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.point.Valid())
		})
	}
}

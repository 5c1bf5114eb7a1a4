package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareAround builds an axis-aligned square ring of the given side length
// centered on p.
func squareAround(p Point, sideMeters float64) []Point {
	half := sideMeters / 2
	north := Destination(p, half, 0).Lat
	south := Destination(p, half, 180).Lat
	east := Destination(p, half, 90).Lng
	west := Destination(p, half, 270).Lng

	return []Point{
		{Lat: south, Lng: west},
		{Lat: south, Lng: east},
		{Lat: north, Lng: east},
		{Lat: north, Lng: west},
	}
}

func TestPointInPolygonSquare(t *testing.T) {
	center := Point{Lat: 0, Lng: 0}
	ring := squareAround(center, 100)

	assert.True(t, PointInPolygon(center, ring), "centroid must be inside")
	assert.False(t, PointInPolygon(Point{Lat: 10, Lng: 10}, ring), "far point must be outside")
	assert.False(t, PointInPolygon(Destination(center, 100, 90), ring), "point past the edge must be outside")
	assert.True(t, PointInPolygon(Destination(center, 30, 45), ring), "interior point must be inside")
}

func TestPointInPolygonDegenerateRing(t *testing.T) {
	assert.False(t, PointInPolygon(Point{0, 0}, nil))
	assert.False(t, PointInPolygon(Point{0, 0}, []Point{{0, 0}}))
	assert.False(t, PointInPolygon(Point{0, 0}, []Point{{0, 0}, {1, 1}}))
	// Two distinct vertices with an explicit closure still are not a polygon.
	assert.False(t, PointInPolygon(Point{0, 0}, []Point{{0, 0}, {1, 1}, {0, 0}}))
}

func TestSanitizeRing(t *testing.T) {
	ring := []Point{
		{Lat: 0, Lng: 0},
		{Lat: math.NaN(), Lng: 5},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 300, Lng: 0}, // out of range
	}

	clean := SanitizeRing(ring)
	require.NotNil(t, clean)
	assert.Len(t, clean, 4) // 3 valid vertices plus closure
	assert.Equal(t, clean[0], clean[len(clean)-1])
}

func TestPolygonAreaSquare(t *testing.T) {
	ring := squareAround(Point{Lat: 0, Lng: 0}, 100)
	assert.InDelta(t, 10000, PolygonArea(ring), 100)

	bigger := squareAround(Point{Lat: 45, Lng: 7}, 200)
	assert.InDelta(t, 40000, PolygonArea(bigger), 500)
}

func TestPolygonAreaInvalid(t *testing.T) {
	assert.Equal(t, 0.0, PolygonArea(nil))
	assert.Equal(t, 0.0, PolygonArea([]Point{{0, 0}, {1, 1}}))
}

func TestPolygonCentroid(t *testing.T) {
	center := Point{Lat: 10, Lng: 20}
	ring := squareAround(center, 100)

	centroid, ok := PolygonCentroid(ring)
	require.True(t, ok)
	assert.InDelta(t, center.Lat, centroid.Lat, 1e-6)
	assert.InDelta(t, center.Lng, centroid.Lng, 1e-6)

	_, ok = PolygonCentroid([]Point{{0, 0}, {1, 1}})
	assert.False(t, ok)
}

func TestBufferPolygonGrowAndShrink(t *testing.T) {
	ring := squareAround(Point{Lat: 0, Lng: 0}, 200)
	baseArea := PolygonArea(ring)

	grown := BufferPolygon(ring, 20)
	require.NotNil(t, grown)
	assert.Greater(t, PolygonArea(grown), baseArea)

	shrunk := BufferPolygon(ring, -20)
	require.NotNil(t, shrunk)
	assert.Less(t, PolygonArea(shrunk), baseArea)
}

func TestBufferPolygonCollapse(t *testing.T) {
	// Vertices sit ~70 m from the centroid; shrinking by more than that
	// collapses the ring.
	ring := squareAround(Point{Lat: 0, Lng: 0}, 100)
	assert.Nil(t, BufferPolygon(ring, -100))
}

func TestDistanceToPolygonEdge(t *testing.T) {
	center := Point{Lat: 0, Lng: 0}
	ring := squareAround(center, 100)

	// Center of a 100 m square is 50 m from every edge.
	assert.InDelta(t, 50, DistanceToPolygonEdge(center, ring), 1)

	// 100 m east of the east edge.
	outside := Destination(center, 150, 90)
	assert.InDelta(t, 100, DistanceToPolygonEdge(outside, ring), 2)

	assert.True(t, math.IsInf(DistanceToPolygonEdge(center, []Point{{0, 0}}), 1))
}

func TestCircleToPolygonVertexDistance(t *testing.T) {
	center := Point{Lat: 48.2082, Lng: 16.3738}
	const radius = 75.0

	ring := CircleToPolygon(center, radius, 0)
	require.Len(t, ring, 33) // 32 steps plus closure

	for i, v := range ring {
		dist := Haversine(center, v)
		assert.GreaterOrEqual(t, dist, radius*0.99, "vertex %d", i)
		assert.LessOrEqual(t, dist, radius*1.01, "vertex %d", i)
	}

	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestCircleToPolygonContainsCenter(t *testing.T) {
	center := Point{Lat: -23.5505, Lng: -46.6333}
	ring := CircleToPolygon(center, 50, 16)

	assert.True(t, PointInPolygon(center, ring))
	assert.False(t, PointInPolygon(Destination(center, 80, 123), ring))
}

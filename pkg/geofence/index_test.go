package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/fieldclock/pkg/geo"
)

func TestIndexCandidates(t *testing.T) {
	ix := NewIndex()

	berlin := geo.Point{Lat: 52.52, Lng: 13.405}
	sydney := geo.Point{Lat: -33.8688, Lng: 151.2093}

	ix.Rebuild([]*Area{
		circleArea("berlin-office", berlin, 100),
		circleArea("sydney-office", sydney, 100),
	})
	require.Equal(t, 2, ix.Len())

	hits := ix.Candidates(berlin)
	require.Len(t, hits, 1)
	assert.Equal(t, "berlin-office", hits[0].ID)

	// A point on another continent matches nothing.
	assert.Empty(t, ix.Candidates(geo.Point{Lat: 40.7128, Lng: -74.006}))
}

func TestIndexCandidatesCreationOrder(t *testing.T) {
	ix := NewIndex()
	center := geo.Point{Lat: 10, Lng: 10}

	older := circleArea("older", center, 100)
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := circleArea("newer", center, 200)
	newer.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Insert newest first; candidate order must still follow creation time.
	ix.Rebuild([]*Area{newer, older})

	hits := ix.Candidates(center)
	require.Len(t, hits, 2)
	assert.Equal(t, "older", hits[0].ID)
	assert.Equal(t, "newer", hits[1].ID)
}

func TestIndexUpsertReplaces(t *testing.T) {
	ix := NewIndex()
	hereP := geo.Point{Lat: 0, Lng: 0}
	thereP := geo.Point{Lat: 45, Lng: 45}

	area := circleArea("movable", hereP, 100)
	ix.Upsert(area)
	require.Len(t, ix.Candidates(hereP), 1)

	moved := circleArea("movable", thereP, 100)
	ix.Upsert(moved)

	assert.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Candidates(hereP))
	assert.Len(t, ix.Candidates(thereP), 1)
}

func TestIndexRemove(t *testing.T) {
	ix := NewIndex()
	center := geo.Point{Lat: 0, Lng: 0}

	ix.Upsert(circleArea("gone-soon", center, 100))
	require.Equal(t, 1, ix.Len())

	ix.Remove("gone-soon")
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Candidates(center))

	// Removing an unknown id is a no-op.
	ix.Remove("never-existed")
}

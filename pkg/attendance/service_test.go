package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/geofence"
	"github.com/fieldclock/fieldclock/pkg/gps"
	"github.com/fieldclock/fieldclock/pkg/logx"
)

var officeCenter = geo.Point{Lat: 52.52, Lng: 13.405}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logx.NewLogger("error", "test")
	dir := t.TempDir()

	areaStore, err := geofence.OpenStore(filepath.Join(dir, "areas.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { areaStore.Close() })

	require.NoError(t, areaStore.Put(&geofence.Area{
		ID:     "office",
		Name:   "office",
		Active: true,
		Shape: geofence.Shape{
			Kind:         geofence.ShapeCircle,
			Center:       officeCenter,
			RadiusMeters: 100,
		},
		CreatedAt: time.Now(),
	}))

	store, err := OpenStore(filepath.Join(dir, "attendance.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(Config{
		Validator:   gps.NewValidator(logger, nil),
		Containment: geofence.NewEngine(logger, nil),
		Index:       geofence.NewIndex(),
		AreaStore:   areaStore,
		Store:       store,
		Logger:      logger,
	})
	require.NoError(t, err)
	return svc
}

func floatPtr(f float64) *float64 { return &f }

func insideReading() *gps.Reading {
	return &gps.Reading{
		Point:                  officeCenter,
		AccuracyMeters:         15,
		AltitudeMeters:         floatPtr(40),
		AltitudeAccuracyMeters: floatPtr(10),
		CapturedAt:             time.Now(),
	}
}

func TestClockAccepted(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.Clock(context.Background(), &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockIn,
		Reading: insideReading(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusAccepted, rec.Status)
	assert.True(t, rec.IsInside)
	assert.False(t, rec.IsMocked)
	assert.Equal(t, "office", rec.AreaName)
	assert.Equal(t, 100, rec.ConfidenceScore)
	assert.Equal(t, 1, rec.SampleCount)

	// The record must be queryable afterwards.
	records, err := svc.store.ListDay("staff-1", rec.RecordedAt)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
}

func TestClockRejectedOutsideArea(t *testing.T) {
	svc := newTestService(t)

	reading := insideReading()
	reading.Point = geo.Destination(officeCenter, 5000, 45)

	rec, err := svc.Clock(context.Background(), &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockIn,
		Reading: reading,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, rec.Status)
	assert.False(t, rec.IsInside)
	assert.Empty(t, rec.AreaName)
}

func TestClockFlaggedMockedInsideArea(t *testing.T) {
	svc := newTestService(t)

	// Inside the area but with a spoofing signature: implausibly precise,
	// no altitude, negative reported speed.
	reading := insideReading()
	reading.AccuracyMeters = 1
	reading.AltitudeMeters = nil
	reading.AltitudeAccuracyMeters = nil
	reading.SpeedMps = floatPtr(-3)

	rec, err := svc.Clock(context.Background(), &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockIn,
		Reading: reading,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFlagged, rec.Status)
	assert.True(t, rec.IsInside)
	assert.True(t, rec.IsMocked)
	assert.NotEmpty(t, rec.Reasons)
	assert.Less(t, rec.ConfidenceScore, 50)
}

func TestClockRequestValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Clock(ctx, &ClockRequest{Kind: ClockIn, Reading: insideReading()})
	assert.Error(t, err, "missing staff id")

	_, err = svc.Clock(ctx, &ClockRequest{StaffID: "s", Kind: "lunch", Reading: insideReading()})
	assert.Error(t, err, "unknown kind")

	// No reading and no device engine configured.
	_, err = svc.Clock(ctx, &ClockRequest{StaffID: "s", Kind: ClockIn})
	assert.ErrorIs(t, err, gps.ErrUnsupported)

	bad := insideReading()
	bad.Point = geo.Point{Lat: 200, Lng: 0}
	_, err = svc.Clock(ctx, &ClockRequest{StaffID: "s", Kind: ClockIn, Reading: bad})
	assert.Error(t, err, "coordinates out of range")
}

func TestClockOutUpdatesDayScore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Clock(ctx, &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockIn,
		Reading: insideReading(),
	})
	require.NoError(t, err)

	// Clock out from outside the area; the day closes with one rejection.
	out := insideReading()
	out.Point = geo.Destination(officeCenter, 5000, 45)
	outRec, err := svc.Clock(ctx, &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockOut,
		Reading: out,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, outRec.Status)

	records, score, err := svc.Day("staff-1", outRec.RecordedAt)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, score)
	assert.Equal(t, 70, score.Score)
}

func TestClockInDoesNotCreateDayScore(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.Clock(context.Background(), &ClockRequest{
		StaffID: "staff-1",
		Kind:    ClockIn,
		Reading: insideReading(),
	})
	require.NoError(t, err)

	_, score, err := svc.Day("staff-1", rec.RecordedAt)
	require.NoError(t, err)
	assert.Nil(t, score, "day score only updates on clock-out")
}

func TestAreaLifecycle(t *testing.T) {
	svc := newTestService(t)

	area := &geofence.Area{
		Name:   "annex",
		Active: true,
		Shape: geofence.Shape{
			Kind:         geofence.ShapeCircle,
			Center:       geo.Point{Lat: 48.2, Lng: 16.37},
			RadiusMeters: 60,
		},
	}
	require.NoError(t, svc.CreateArea(area))
	assert.NotEmpty(t, area.ID, "create assigns an id")
	assert.False(t, area.CreatedAt.IsZero())

	areas, err := svc.ListAreas()
	require.NoError(t, err)
	assert.Len(t, areas, 2)
	assert.Equal(t, 2, svc.index.Len())

	// A clock-in at the new area now matches it.
	reading := insideReading()
	reading.Point = area.Shape.Center
	rec, err := svc.Clock(context.Background(), &ClockRequest{
		StaffID: "staff-2",
		Kind:    ClockIn,
		Reading: reading,
	})
	require.NoError(t, err)
	assert.Equal(t, "annex", rec.AreaName)

	area.Name = "annex-renamed"
	require.NoError(t, svc.UpdateArea(area))

	got, err := svc.areaStore.Get(area.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "annex-renamed", got.Name)

	require.NoError(t, svc.DeleteArea(area.ID))
	assert.Equal(t, 1, svc.index.Len())
}

func TestUpdateAreaNotFound(t *testing.T) {
	svc := newTestService(t)

	err := svc.UpdateArea(&geofence.Area{
		ID:   "missing",
		Name: "missing",
		Shape: geofence.Shape{
			Kind:         geofence.ShapeCircle,
			Center:       geo.Point{Lat: 0, Lng: 0},
			RadiusMeters: 10,
		},
	})
	assert.Error(t, err)
}

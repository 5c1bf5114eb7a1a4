package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldclock/fieldclock/pkg/geocode"
	"github.com/fieldclock/fieldclock/pkg/geofence"
	"github.com/fieldclock/fieldclock/pkg/gps"
	"github.com/fieldclock/fieldclock/pkg/logx"
	"github.com/fieldclock/fieldclock/pkg/mqtt"
	"github.com/fieldclock/fieldclock/pkg/telem"
)

// Day score components. Location-derived only; payroll weighting happens
// downstream.
const (
	dayScoreBase          = 100
	dayScoreOutOfArea     = 30 // per out-of-area clock event
	dayScoreMockedReading = 20 // per flagged reading
)

// Service runs the clock-in/clock-out flow: obtain a reading, score its
// plausibility, decide containment, persist the record and publish the event.
type Service struct {
	engine      *gps.Engine
	validator   *gps.Validator
	containment *geofence.Engine
	index       *geofence.Index
	areaStore   *geofence.Store
	store       *Store
	publisher   *mqtt.Client
	geocoder    *geocode.Reverse
	logger      *logx.Logger
	metrics     *telem.Metrics

	adminToleranceMeters float64
}

// Config holds the service collaborators. Engine and Geocoder are optional.
type Config struct {
	Engine               *gps.Engine
	Validator            *gps.Validator
	Containment          *geofence.Engine
	Index                *geofence.Index
	AreaStore            *geofence.Store
	Store                *Store
	Publisher            *mqtt.Client
	Geocoder             *geocode.Reverse
	Logger               *logx.Logger
	Metrics              *telem.Metrics
	AdminToleranceMeters float64
}

// NewService wires the attendance service, loading persisted areas into the
// spatial index.
func NewService(cfg Config) (*Service, error) {
	s := &Service{
		engine:               cfg.Engine,
		validator:            cfg.Validator,
		containment:          cfg.Containment,
		index:                cfg.Index,
		areaStore:            cfg.AreaStore,
		store:                cfg.Store,
		publisher:            cfg.Publisher,
		geocoder:             cfg.Geocoder,
		logger:               cfg.Logger,
		metrics:              cfg.Metrics,
		adminToleranceMeters: cfg.AdminToleranceMeters,
	}

	areas, err := s.areaStore.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load areas: %w", err)
	}
	s.index.Rebuild(areas)

	s.logger.Info("attendance service ready",
		"areas", len(areas),
		"admin_tolerance_m", s.adminToleranceMeters)
	return s, nil
}

// Clock processes a clock attempt. With no client-supplied reading it
// acquires one through the device engine (kiosk mode). The attempt is always
// recorded; only acquisition failures surface as errors.
func (s *Service) Clock(ctx context.Context, req *ClockRequest) (*Record, error) {
	if req.StaffID == "" {
		return nil, fmt.Errorf("staff_id is required")
	}
	if req.Kind != ClockIn && req.Kind != ClockOut {
		return nil, fmt.Errorf("unknown clock kind %q", req.Kind)
	}

	reading, sampleCount, err := s.obtainReading(ctx, req)
	if err != nil {
		return nil, err
	}
	if !reading.Point.Valid() {
		return nil, fmt.Errorf("reading coordinates out of range: %+v", reading.Point)
	}

	verdict := s.validator.Validate(*reading)

	candidates := s.index.Candidates(reading.Point)
	decision := s.containment.Evaluate(reading.Point, reading.AccuracyMeters, candidates, s.adminToleranceMeters)

	rec := &Record{
		ID:              uuid.NewString(),
		StaffID:         req.StaffID,
		Kind:            req.Kind,
		Status:          status(decision.IsInside, verdict.IsMocked),
		Point:           reading.Point,
		AccuracyMeters:  reading.AccuracyMeters,
		SampleCount:     sampleCount,
		ConfidenceScore: verdict.ConfidenceScore,
		IsMocked:        verdict.IsMocked,
		Reasons:         verdict.Reasons,
		IsInside:        decision.IsInside,
		AreaName:        decision.MatchedAreaName,
		DistanceToEdge:  decision.DistanceToEdgeMeters,
		RecordedAt:      time.Now(),
	}

	if rec.Status == StatusAccepted {
		rec.Address = s.geocoder.Lookup(ctx, rec.Point)
	}

	if err := s.store.Insert(rec); err != nil {
		return nil, err
	}
	s.metrics.ObserveClockEvent(string(rec.Kind), string(rec.Status))

	s.publish("events/clock", rec)
	if rec.Status == StatusRejected {
		s.publish("alerts/out_of_area", rec)
	}

	if req.Kind == ClockOut {
		if err := s.updateDayScore(rec.StaffID, rec.RecordedAt); err != nil {
			s.logger.Warn("day score update failed",
				"staff_id", rec.StaffID,
				"error", err.Error())
		}
	}

	s.logger.Info("clock attempt recorded",
		"staff_id", rec.StaffID,
		"kind", string(rec.Kind),
		"status", string(rec.Status),
		"area", rec.AreaName,
		"confidence", rec.ConfidenceScore)
	return rec, nil
}

func (s *Service) obtainReading(ctx context.Context, req *ClockRequest) (*gps.Reading, int, error) {
	if req.Reading != nil {
		return req.Reading, 1, nil
	}

	if s.engine == nil {
		return nil, 0, fmt.Errorf("no reading supplied and no device engine configured: %w", gps.ErrUnsupported)
	}

	loc, err := s.engine.EnhancedLocation(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("location acquisition failed: %w", err)
	}

	return &gps.Reading{
		Point:          loc.Point,
		AccuracyMeters: loc.AccuracyMeters,
		CapturedAt:     loc.CapturedAt,
	}, loc.SampleCount, nil
}

func status(inside, mocked bool) Status {
	switch {
	case !inside:
		return StatusRejected
	case mocked:
		return StatusFlagged
	default:
		return StatusAccepted
	}
}

func (s *Service) publish(topic string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, payload); err != nil {
		s.metrics.ObservePublishFailure()
		s.logger.Warn("event publish failed", "topic", topic, "error", err.Error())
	}
}

// updateDayScore recomputes the location-derived day score from the day's
// records when a clock-out closes the day.
func (s *Service) updateDayScore(staffID string, day time.Time) error {
	records, err := s.store.ListDay(staffID, day)
	if err != nil {
		return err
	}

	score := dayScoreBase
	for _, rec := range records {
		if !rec.IsInside {
			score -= dayScoreOutOfArea
		}
		if rec.IsMocked {
			score -= dayScoreMockedReading
		}
	}
	if score < 0 {
		score = 0
	}

	return s.store.UpsertDayScore(&DayScore{
		StaffID: staffID,
		Date:    day.Format("2006-01-02"),
		Score:   score,
		Updated: time.Now(),
	})
}

// CreateArea validates, persists and indexes a new geofence area.
func (s *Service) CreateArea(area *geofence.Area) error {
	if area.ID == "" {
		area.ID = uuid.NewString()
	}
	now := time.Now()
	if area.CreatedAt.IsZero() {
		area.CreatedAt = now
	}
	area.UpdatedAt = now

	if err := s.areaStore.Put(area); err != nil {
		return err
	}
	s.index.Upsert(area)
	return nil
}

// UpdateArea replaces an existing area definition.
func (s *Service) UpdateArea(area *geofence.Area) error {
	existing, err := s.areaStore.Get(area.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("area %q not found", area.ID)
	}

	area.CreatedAt = existing.CreatedAt
	area.UpdatedAt = time.Now()
	if err := s.areaStore.Put(area); err != nil {
		return err
	}
	s.index.Upsert(area)
	return nil
}

// DeleteArea removes an area from the store and the index.
func (s *Service) DeleteArea(id string) error {
	if err := s.areaStore.Delete(id); err != nil {
		return err
	}
	s.index.Remove(id)
	return nil
}

// ListAreas returns all persisted areas in creation order.
func (s *Service) ListAreas() ([]*geofence.Area, error) {
	return s.areaStore.List()
}

// Day returns a staff member's records and score for a date.
func (s *Service) Day(staffID string, day time.Time) ([]*Record, *DayScore, error) {
	records, err := s.store.ListDay(staffID, day)
	if err != nil {
		return nil, nil, err
	}
	score, err := s.store.DayScore(staffID, day.Format("2006-01-02"))
	if err != nil {
		return nil, nil, err
	}
	return records, score, nil
}

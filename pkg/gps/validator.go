package gps

import (
	"sync"
	"time"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/logx"
	"github.com/fieldclock/fieldclock/pkg/telem"
)

// Verdict is the plausibility assessment of a single reading. A verdict is
// always produced: an attendance system must make an admit/deny decision even
// on degraded signal quality, so denial is expressed through a low confidence
// score rather than an error.
type Verdict struct {
	IsValid         bool     `json:"is_valid"`
	IsMocked        bool     `json:"is_mocked"`
	ConfidenceScore int      `json:"confidence_score"`
	Reasons         []string `json:"reasons"`
}

// Penalty magnitudes and gates. Empirically chosen in production; preserved
// as constants, not tuned.
const (
	historyCapacity = 10
	mockedThreshold = 50

	penaltyPerfectAccuracy   = 25 // accuracy < 3 m, too perfect for real GPS chips
	penaltyPoorAccuracy      = 10 // accuracy > 100 m
	penaltyStaleReading      = 20 // older than 30 s
	penaltyNoAltitude        = 5  // soft signal, many devices omit altitude
	penaltyAltitudeOutOfBand = 15 // outside [-500, 10000] m
	penaltyTeleport          = 40 // implied speed > 100 m/s
	penaltyFastAndPrecise    = 20 // implied speed in (50,100] m/s at accuracy < 10 m
	penaltyFrozenCoordinates = 15 // 4 identical coordinates at accuracy < 5 m
	penaltyNegativeSpeed     = 30 // device-reported speed < 0
	penaltyExcessiveSpeed    = 20 // device-reported speed > 100 m/s

	staleAfter         = 30 * time.Second
	quickStaleAfter    = 60 * time.Second
	maxSpeedWindow     = 60.0 // seconds; gaps beyond this skip the speed check
	teleportSpeedMps   = 100.0
	suspiciousSpeedMps = 50.0
	minAltitudeMeters  = -500.0
	maxAltitudeMeters  = 10000.0
	frozenHistoryDepth = 3
)

// Validator scores readings against spoofing signatures using a short rolling
// history of prior readings. The history is owned exclusively by the
// validator; readings are appended after evaluation so a reading never
// compares against itself.
type Validator struct {
	mu      sync.Mutex
	history []Reading
	logger  *logx.Logger
	metrics *telem.Metrics
	now     func() time.Time
}

// NewValidator creates a plausibility validator with an empty history.
func NewValidator(logger *logx.Logger, metrics *telem.Metrics) *Validator {
	return &Validator{
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Validate scores a reading. Penalties are independent and additive; none is
// a hard rejection on its own. The reading joins the history afterwards, with
// FIFO eviction at capacity.
func (v *Validator) Validate(reading Reading) Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()

	score := 100
	var reasons []string

	penalize := func(points int, reason string) {
		score -= points
		reasons = append(reasons, reason)
	}

	if reading.AccuracyMeters < 3 {
		penalize(penaltyPerfectAccuracy, "accuracy suspiciously precise")
	}
	if reading.AccuracyMeters > 100 {
		penalize(penaltyPoorAccuracy, "accuracy very poor")
	}

	if v.now().Sub(reading.CapturedAt) > staleAfter {
		penalize(penaltyStaleReading, "reading is stale")
	}

	if reading.AltitudeMeters == nil && reading.AltitudeAccuracyMeters == nil {
		penalize(penaltyNoAltitude, "no altitude data reported")
	}
	if reading.AltitudeMeters != nil {
		alt := *reading.AltitudeMeters
		if alt < minAltitudeMeters || alt > maxAltitudeMeters {
			penalize(penaltyAltitudeOutOfBand, "altitude out of plausible range")
		}
	}

	if len(v.history) > 0 {
		prev := v.history[len(v.history)-1]
		elapsed := reading.CapturedAt.Sub(prev.CapturedAt).Seconds()
		if elapsed > 0 && elapsed < maxSpeedWindow {
			speed := geo.Haversine(prev.Point, reading.Point) / elapsed
			if speed > teleportSpeedMps {
				penalize(penaltyTeleport, "implied speed exceeds travel limits")
			} else if speed > suspiciousSpeedMps && reading.AccuracyMeters < 10 {
				penalize(penaltyFastAndPrecise, "implausible speed at high precision")
			}
		}
	}

	if v.frozenCoordinates(reading) && reading.AccuracyMeters < 5 {
		penalize(penaltyFrozenCoordinates, "coordinates frozen at high precision")
	}

	if reading.SpeedMps != nil {
		switch speed := *reading.SpeedMps; {
		case speed < 0:
			penalize(penaltyNegativeSpeed, "negative reported speed")
		case speed > teleportSpeedMps:
			penalize(penaltyExcessiveSpeed, "reported speed exceeds travel limits")
		}
	}

	v.append(reading)

	verdict := Verdict{
		IsMocked:        score < mockedThreshold,
		ConfidenceScore: score,
		Reasons:         reasons,
	}
	verdict.IsValid = !verdict.IsMocked

	if verdict.IsMocked {
		v.metrics.ObserveVerdict("mocked", score)
		v.logger.Warn("reading flagged as mocked",
			"score", score,
			"reasons", reasons)
	} else {
		v.metrics.ObserveVerdict("valid", score)
		v.logger.Debug("reading validated",
			"score", score,
			"reasons", reasons)
	}

	return verdict
}

// frozenCoordinates reports whether the last frozenHistoryDepth history
// entries and the current reading share identical coordinates.
func (v *Validator) frozenCoordinates(reading Reading) bool {
	if len(v.history) < frozenHistoryDepth {
		return false
	}
	for _, prev := range v.history[len(v.history)-frozenHistoryDepth:] {
		if prev.Point != reading.Point {
			return false
		}
	}
	return true
}

func (v *Validator) append(reading Reading) {
	v.history = append(v.history, reading)
	if len(v.history) > historyCapacity {
		v.history = v.history[1:]
	}
}

// HistoryLen returns the current history depth.
func (v *Validator) HistoryLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.history)
}

// QuickValidate is the lightweight check for low-latency contexts such as
// unattended kiosks. It rejects only implausibly precise or stale readings
// and neither consults nor mutates history.
func QuickValidate(reading Reading, now time.Time) bool {
	if reading.AccuracyMeters < 2 {
		return false
	}
	if now.Sub(reading.CapturedAt) > quickStaleAfter {
		return false
	}
	return true
}

// Package telem exposes Prometheus collectors for the acquisition,
// validation and containment pipeline.
package telem

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors owned by the daemon. A nil *Metrics is a
// no-op everywhere so library code can be used without a metrics registry.
type Metrics struct {
	ReadingsTotal        *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	AcquisitionSeconds   prometheus.Histogram
	VerdictsTotal        *prometheus.CounterVec
	ConfidenceScore      prometheus.Histogram
	DecisionsTotal       *prometheus.CounterVec
	ClockEventsTotal     *prometheus.CounterVec
	PublishFailuresTotal prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "gps",
			Name:      "readings_total",
			Help:      "Positioning requests by outcome.",
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "gps",
			Name:      "debounce_cache_hits_total",
			Help:      "Enhanced location calls served from the debounce cache.",
		}),
		AcquisitionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fieldclock",
			Subsystem: "gps",
			Name:      "acquisition_seconds",
			Help:      "Wall time of enhanced location acquisition.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "validator",
			Name:      "verdicts_total",
			Help:      "Plausibility verdicts by result.",
		}, []string{"result"}),
		ConfidenceScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fieldclock",
			Subsystem: "validator",
			Name:      "confidence_score",
			Help:      "Distribution of plausibility confidence scores.",
			Buckets:   []float64{0, 10, 25, 50, 65, 80, 90, 100},
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "geofence",
			Name:      "decisions_total",
			Help:      "Containment decisions by outcome.",
		}, []string{"inside"}),
		ClockEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "attendance",
			Name:      "clock_events_total",
			Help:      "Clock events by kind and status.",
		}, []string{"kind", "status"}),
		PublishFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldclock",
			Subsystem: "attendance",
			Name:      "publish_failures_total",
			Help:      "Failed MQTT event publishes.",
		}),
	}

	reg.MustRegister(
		m.ReadingsTotal,
		m.CacheHitsTotal,
		m.AcquisitionSeconds,
		m.VerdictsTotal,
		m.ConfidenceScore,
		m.DecisionsTotal,
		m.ClockEventsTotal,
		m.PublishFailuresTotal,
	)
	return m
}

// ObserveReading records a positioning request outcome.
func (m *Metrics) ObserveReading(outcome string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheHit records a debounce cache hit.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// ObserveAcquisition records the duration of an enhanced acquisition.
func (m *Metrics) ObserveAcquisition(seconds float64) {
	if m == nil {
		return
	}
	m.AcquisitionSeconds.Observe(seconds)
}

// ObserveVerdict records a plausibility verdict.
func (m *Metrics) ObserveVerdict(result string, score int) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(result).Inc()
	m.ConfidenceScore.Observe(float64(score))
}

// ObserveDecision records a containment decision.
func (m *Metrics) ObserveDecision(inside bool) {
	if m == nil {
		return
	}
	if inside {
		m.DecisionsTotal.WithLabelValues("true").Inc()
	} else {
		m.DecisionsTotal.WithLabelValues("false").Inc()
	}
}

// ObserveClockEvent records a processed clock event.
func (m *Metrics) ObserveClockEvent(kind, status string) {
	if m == nil {
		return
	}
	m.ClockEventsTotal.WithLabelValues(kind, status).Inc()
}

// ObservePublishFailure records a failed event publish.
func (m *Metrics) ObservePublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailuresTotal.Inc()
}

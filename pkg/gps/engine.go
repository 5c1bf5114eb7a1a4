package gps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldclock/fieldclock/pkg/logx"
	"github.com/fieldclock/fieldclock/pkg/telem"
)

// WatchFallbackTimeout bounds the continuous-watch fallback that runs after a
// one-shot request times out.
const WatchFallbackTimeout = 5 * time.Second

// Engine orchestrates positioning requests: single reads, watch-based
// fallback, sequential multi-reading averaging and a short debounce cache.
// Acquisition is serialized; concurrent callers inside the debounce window
// observe the same cached result instead of triggering duplicate hardware
// wake-ups.
type Engine struct {
	provider Provider
	cache    *debounceCache
	logger   *logx.Logger
	metrics  *telem.Metrics

	// acquireMu serializes actual device acquisition so overlapping
	// location requests never race on the provider.
	acquireMu chan struct{}

	now func() time.Time
}

// NewEngine creates an acquisition engine over the given provider.
func NewEngine(provider Provider, logger *logx.Logger, metrics *telem.Metrics) *Engine {
	e := &Engine{
		provider:  provider,
		cache:     newDebounceCache(DebounceWindow, nil),
		logger:    logger,
		metrics:   metrics,
		acquireMu: make(chan struct{}, 1),
		now:       time.Now,
	}
	e.acquireMu <- struct{}{}
	return e
}

// SingleReading performs one positioning request bounded by opts.Timeout.
func (e *Engine) SingleReading(ctx context.Context, opts Options) (*Reading, error) {
	if e.provider == nil {
		return nil, ErrUnsupported
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reading, err := e.provider.Current(reqCtx, opts)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		e.metrics.ObserveReading("error")
		return nil, err
	}

	e.metrics.ObserveReading("ok")
	return reading, nil
}

// ReadingWithFallback races a one-shot request against its timeout and, on
// timeout, falls back to a continuous watch for up to WatchFallbackTimeout,
// resolving with the first watch result. The watch subscription is released
// on every exit path.
func (e *Engine) ReadingWithFallback(ctx context.Context, opts Options) (*Reading, error) {
	reading, err := e.SingleReading(ctx, opts)
	if err == nil {
		return reading, nil
	}
	if !errors.Is(err, ErrTimeout) {
		return nil, err
	}

	e.logger.Debug("one-shot positioning timed out, falling back to watch",
		"timeout", opts.Timeout.String())

	watchCtx, cancel := context.WithTimeout(ctx, WatchFallbackTimeout)
	defer cancel()

	ch, stop, err := e.provider.Watch(watchCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("watch fallback failed: %w", err)
	}
	defer stop()

	select {
	case r, ok := <-ch:
		if !ok {
			break
		}
		e.metrics.ObserveReading("watch_ok")
		return &r, nil
	case <-watchCtx.Done():
	}

	e.metrics.ObserveReading("watch_timeout")
	return nil, fmt.Errorf("watch fallback produced no reading: %w", ErrPositionUnavailable)
}

// MultipleReadings sequentially requests up to count readings spaced interval
// apart. Individual failures are skipped, so the result may be shorter than
// count, including empty. The loop is deliberately sequential: overlapping
// device requests produce undefined callback behavior on most platforms.
func (e *Engine) MultipleReadings(ctx context.Context, count int, interval time.Duration, opts Options) ([]Reading, error) {
	readings := make([]Reading, 0, count)

	for i := 0; i < count; i++ {
		reading, err := e.SingleReading(ctx, opts)
		if err != nil {
			e.logger.Warn("reading skipped",
				"attempt", i+1,
				"of", count,
				"error", err.Error())
		} else {
			readings = append(readings, *reading)
		}

		if i < count-1 && interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return readings, ctx.Err()
			}
		}
	}

	return readings, nil
}

// EnhancedLocation is the top-level acquisition entry point. A result younger
// than the debounce window is returned immediately without any device call.
// Otherwise it gathers multiple readings and averages them, falling back to a
// single fallback read when every sample failed. The produced location is
// cached before returning.
func (e *Engine) EnhancedLocation(ctx context.Context, cfg *EnhancedConfig) (*AveragedLocation, error) {
	if cfg == nil {
		cfg = DefaultEnhancedConfig()
	}

	if loc, ok := e.cache.get(); ok {
		e.metrics.ObserveCacheHit()
		e.logger.Debug("enhanced location served from debounce cache",
			"age", e.now().Sub(loc.CapturedAt).String(),
			"samples", loc.SampleCount)
		return loc, nil
	}

	// One acquisition at a time. A caller that waited here re-checks the
	// cache so near-simultaneous clock-in taps share a single device pass.
	select {
	case <-e.acquireMu:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { e.acquireMu <- struct{}{} }()

	if loc, ok := e.cache.get(); ok {
		e.metrics.ObserveCacheHit()
		return loc, nil
	}

	start := e.now()
	loc, err := e.acquire(ctx, cfg)
	e.metrics.ObserveAcquisition(e.now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}

	e.cache.put(loc)
	e.logger.Info("enhanced location acquired",
		"lat", loc.Point.Lat,
		"lng", loc.Point.Lng,
		"accuracy_m", loc.AccuracyMeters,
		"samples", loc.SampleCount,
		"duration", e.now().Sub(start).String())
	return loc, nil
}

func (e *Engine) acquire(ctx context.Context, cfg *EnhancedConfig) (*AveragedLocation, error) {
	opts := cfg.options()

	if cfg.UseMultipleReadings && cfg.ReadingsCount > 1 {
		readings, err := e.MultipleReadings(ctx, cfg.ReadingsCount, cfg.ReadingInterval, opts)
		if err != nil && len(readings) == 0 {
			return nil, err
		}

		if len(readings) == 0 {
			reading, fbErr := e.ReadingWithFallback(ctx, opts)
			if fbErr != nil {
				return nil, fmt.Errorf("all readings failed: %w", fbErr)
			}
			readings = []Reading{*reading}
		}

		avg := Average(readings)
		return &avg, nil
	}

	reading, err := e.ReadingWithFallback(ctx, opts)
	if err != nil {
		return nil, err
	}

	avg := Average([]Reading{*reading})
	return &avg, nil
}

// ClearCache drops the debounce cache, forcing the next acquisition to hit
// the device.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

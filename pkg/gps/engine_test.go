package gps

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/logx"
)

// mockProvider scripts Current and Watch responses per call.
type mockProvider struct {
	mu         sync.Mutex
	calls      int
	watchCalls int
	currentFn  func(call int) (*Reading, error)
	watchFn    func(ctx context.Context) (<-chan Reading, func(), error)
}

func (m *mockProvider) Current(ctx context.Context, opts Options) (*Reading, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	return m.currentFn(call)
}

func (m *mockProvider) Watch(ctx context.Context, opts Options) (<-chan Reading, func(), error) {
	m.mu.Lock()
	m.watchCalls++
	m.mu.Unlock()
	if m.watchFn == nil {
		ch := make(chan Reading)
		close(ch)
		return ch, func() {}, nil
	}
	return m.watchFn(ctx)
}

func (m *mockProvider) currentCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestEngine(p Provider) *Engine {
	return NewEngine(p, logx.NewLogger("error", "test"), nil)
}

func fastConfig() *EnhancedConfig {
	return &EnhancedConfig{
		HighAccuracy:        true,
		Timeout:             time.Second,
		UseMultipleReadings: true,
		ReadingsCount:       3,
		ReadingInterval:     0,
	}
}

func TestSingleReadingNilProvider(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.SingleReading(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEnhancedLocationAverages(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return &Reading{
				Point:          geo.Point{Lat: 10 + float64(call-1), Lng: 20},
				AccuracyMeters: float64(call) * 5,
				CapturedAt:     time.Now(),
			}, nil
		},
	}
	e := newTestEngine(p)

	loc, err := e.EnhancedLocation(context.Background(), fastConfig())
	require.NoError(t, err)

	assert.InDelta(t, 11, loc.Point.Lat, 1e-9)
	assert.InDelta(t, 20, loc.Point.Lng, 1e-9)
	assert.InDelta(t, 10, loc.AccuracyMeters, 1e-9)
	assert.Equal(t, 3, loc.SampleCount)
	assert.Equal(t, 3, p.currentCalls())
}

func TestEnhancedLocationDebounce(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return &Reading{
				Point:          geo.Point{Lat: 1, Lng: 2},
				AccuracyMeters: 10,
				CapturedAt:     time.Now(),
			}, nil
		},
	}
	e := newTestEngine(p)

	first, err := e.EnhancedLocation(context.Background(), fastConfig())
	require.NoError(t, err)
	callsAfterFirst := p.currentCalls()

	// Second call inside the debounce window must not touch the device.
	second, err := e.EnhancedLocation(context.Background(), fastConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, p.currentCalls())
}

func TestEnhancedLocationClearCacheForcesReacquire(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return &Reading{
				Point:          geo.Point{Lat: float64(call), Lng: 0},
				AccuracyMeters: 10,
				CapturedAt:     time.Now(),
			}, nil
		},
	}
	e := newTestEngine(p)

	_, err := e.EnhancedLocation(context.Background(), fastConfig())
	require.NoError(t, err)

	e.ClearCache()

	_, err = e.EnhancedLocation(context.Background(), fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 6, p.currentCalls())
}

func TestEnhancedLocationConcurrentCallersShareOnePass(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			time.Sleep(10 * time.Millisecond)
			return &Reading{
				Point:          geo.Point{Lat: 3, Lng: 4},
				AccuracyMeters: 12,
				CapturedAt:     time.Now(),
			}, nil
		},
	}
	e := newTestEngine(p)

	var wg sync.WaitGroup
	results := make([]*AveragedLocation, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := e.EnhancedLocation(context.Background(), fastConfig())
			assert.NoError(t, err)
			results[i] = loc
		}(i)
	}
	wg.Wait()

	// Exactly one caller hit the device; the rest were served from cache.
	assert.Equal(t, 3, p.currentCalls())
	for _, loc := range results {
		require.NotNil(t, loc)
		assert.Equal(t, results[0], loc)
	}
}

func TestEnhancedLocationAllReadingsFail(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return nil, ErrTimeout
		},
		watchFn: func(ctx context.Context) (<-chan Reading, func(), error) {
			ch := make(chan Reading)
			close(ch)
			return ch, func() {}, nil
		},
	}
	e := newTestEngine(p)

	_, err := e.EnhancedLocation(context.Background(), fastConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPositionUnavailable)

	// Three averaging attempts plus one fallback one-shot.
	assert.Equal(t, 4, p.currentCalls())
	assert.Equal(t, 1, p.watchCalls)
}

func TestReadingWithFallbackWatchDelivers(t *testing.T) {
	want := Reading{
		Point:          geo.Point{Lat: 7, Lng: 8},
		AccuracyMeters: 9,
		CapturedAt:     time.Now(),
	}
	stopped := false
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return nil, ErrTimeout
		},
		watchFn: func(ctx context.Context) (<-chan Reading, func(), error) {
			ch := make(chan Reading, 1)
			ch <- want
			return ch, func() { stopped = true }, nil
		},
	}
	e := newTestEngine(p)

	got, err := e.ReadingWithFallback(context.Background(), Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.True(t, stopped, "watch subscription must be released")
}

func TestReadingWithFallbackSkipsWatchOnHardError(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			return nil, ErrPermissionDenied
		},
	}
	e := newTestEngine(p)

	_, err := e.ReadingWithFallback(context.Background(), Options{Timeout: time.Second})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, p.watchCalls, "non-timeout errors must not trigger the watch fallback")
}

func TestMultipleReadingsSkipsFailures(t *testing.T) {
	p := &mockProvider{
		currentFn: func(call int) (*Reading, error) {
			if call == 2 {
				return nil, ErrPositionUnavailable
			}
			return &Reading{
				Point:          geo.Point{Lat: float64(call), Lng: 0},
				AccuracyMeters: 10,
				CapturedAt:     time.Now(),
			}, nil
		},
	}
	e := newTestEngine(p)

	readings, err := e.MultipleReadings(context.Background(), 3, 0, Options{Timeout: time.Second})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 1.0, readings[0].Point.Lat)
	assert.Equal(t, 3.0, readings[1].Point.Lat)
}

func TestDebounceCacheExpiry(t *testing.T) {
	current := time.Unix(1000, 0)
	c := newDebounceCache(DebounceWindow, func() time.Time { return current })

	_, ok := c.get()
	assert.False(t, ok)

	c.put(&AveragedLocation{Point: geo.Point{Lat: 1, Lng: 2}, SampleCount: 3})

	loc, ok := c.get()
	require.True(t, ok)
	assert.Equal(t, 3, loc.SampleCount)

	// Age the entry just short of the window, then past it.
	current = current.Add(DebounceWindow - time.Millisecond)
	_, ok = c.get()
	assert.True(t, ok)

	current = current.Add(2 * time.Millisecond)
	_, ok = c.get()
	assert.False(t, ok)
}

func TestDebounceCacheReturnsCopies(t *testing.T) {
	c := newDebounceCache(DebounceWindow, nil)
	c.put(&AveragedLocation{Point: geo.Point{Lat: 5, Lng: 6}})

	loc, ok := c.get()
	require.True(t, ok)
	loc.Point.Lat = 99

	again, ok := c.get()
	require.True(t, ok)
	assert.Equal(t, 5.0, again.Point.Lat)
}

package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/logx"
)

// GpsdProvider reads fixes from a local gpsd daemon over its JSON TCP
// protocol. Used on kiosk deployments where the terminal owns a GNSS
// receiver.
type GpsdProvider struct {
	addr   string
	logger *logx.Logger
}

// GpsdDefaultAddr is gpsd's standard listen address.
const GpsdDefaultAddr = "localhost:2947"

// NewGpsdProvider creates a provider for the gpsd daemon at addr (empty means
// GpsdDefaultAddr).
func NewGpsdProvider(addr string, logger *logx.Logger) *GpsdProvider {
	if addr == "" {
		addr = GpsdDefaultAddr
	}
	return &GpsdProvider{addr: addr, logger: logger}
}

// tpvReport is the subset of gpsd's TPV class we consume.
type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Time  string   `json:"time"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Alt   *float64 `json:"alt"`
	Epx   *float64 `json:"epx"`
	Epy   *float64 `json:"epy"`
	Epv   *float64 `json:"epv"`
	Speed *float64 `json:"speed"`
	Track *float64 `json:"track"`
}

func (p *GpsdProvider) dial(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: gpsd not reachable at %s: %v", ErrUnsupported, p.addr, err)
	}

	if _, err := fmt.Fprintf(conn, "?WATCH={\"enable\":true,\"json\":true}\n"); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: gpsd watch request failed: %v", ErrPositionUnavailable, err)
	}

	return conn, bufio.NewReader(conn), nil
}

// Current connects to gpsd and resolves with the first 2D-or-better fix.
func (p *GpsdProvider) Current(ctx context.Context, opts Options) (*Reading, error) {
	conn, reader, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	for {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(deadline)
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil || isTimeout(err) {
				return nil, fmt.Errorf("%w: no fix from gpsd", ErrTimeout)
			}
			return nil, fmt.Errorf("%w: gpsd read failed: %v", ErrPositionUnavailable, err)
		}

		reading, ok := p.parseTPV(line)
		if ok {
			return reading, nil
		}
	}
}

// Watch streams fixes from gpsd until the context ends or the returned cancel
// func is called. The cancel func is idempotent and always releases the
// connection.
func (p *GpsdProvider) Watch(ctx context.Context, opts Options) (<-chan Reading, func(), error) {
	conn, reader, err := p.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Reading, 1)
	done := make(chan struct{})

	stop := func() {
		select {
		case <-done:
		default:
			close(done)
		}
		conn.Close()
	}

	go func() {
		defer close(ch)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(time.Second))
			line, err := reader.ReadBytes('\n')
			if err != nil {
				if isTimeout(err) {
					select {
					case <-done:
						return
					case <-ctx.Done():
						return
					default:
						continue
					}
				}
				return
			}

			reading, ok := p.parseTPV(line)
			if !ok {
				continue
			}

			select {
			case ch <- *reading:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, stop, nil
}

func (p *GpsdProvider) parseTPV(line []byte) (*Reading, bool) {
	var tpv tpvReport
	if err := json.Unmarshal(line, &tpv); err != nil {
		p.logger.Trace("unparseable gpsd report", "error", err.Error())
		return nil, false
	}
	if tpv.Class != "TPV" || tpv.Mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
		return nil, false
	}

	capturedAt := time.Now()
	if tpv.Time != "" {
		if ts, err := time.Parse(time.RFC3339, tpv.Time); err == nil {
			capturedAt = ts
		}
	}

	reading := &Reading{
		Point:          geo.Point{Lat: *tpv.Lat, Lng: *tpv.Lon},
		AccuracyMeters: horizontalAccuracy(tpv.Epx, tpv.Epy),
		CapturedAt:     capturedAt,
		SpeedMps:       tpv.Speed,
		HeadingDeg:     tpv.Track,
	}
	if tpv.Mode >= 3 && tpv.Alt != nil {
		reading.AltitudeMeters = tpv.Alt
		reading.AltitudeAccuracyMeters = tpv.Epv
	}

	if !reading.Point.Valid() {
		return nil, false
	}
	return reading, true
}

// horizontalAccuracy folds gpsd's per-axis error estimates into a single
// radius. Defaults to 50 m when gpsd reports neither.
func horizontalAccuracy(epx, epy *float64) float64 {
	switch {
	case epx != nil && epy != nil:
		if *epx > *epy {
			return *epx
		}
		return *epy
	case epx != nil:
		return *epx
	case epy != nil:
		return *epy
	default:
		return 50
	}
}

func isTimeout(err error) bool {
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}

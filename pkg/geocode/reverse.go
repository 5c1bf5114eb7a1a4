// Package geocode resolves accepted clock-in coordinates to street addresses
// for audit records.
package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/fieldclock/fieldclock/pkg/geo"
	"github.com/fieldclock/fieldclock/pkg/logx"
)

// Reverse wraps the Google Maps geocoding API. Optional: a nil *Reverse skips
// geocoding entirely.
type Reverse struct {
	client *maps.Client
	logger *logx.Logger
}

// NewReverse creates a reverse geocoder with the given API key.
func NewReverse(apiKey string, logger *logx.Logger) (*Reverse, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Reverse{client: client, logger: logger}, nil
}

// Lookup returns the formatted address for a point, or "" when the API has no
// result. Lookup failures are soft: attendance records simply omit the
// address.
func (r *Reverse) Lookup(ctx context.Context, p geo.Point) string {
	if r == nil {
		return ""
	}

	results, err := r.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		r.logger.Warn("reverse geocode failed", "error", err.Error())
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	return results[0].FormattedAddress
}

package geo

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang/geo/s2"
	"googlemaps.github.io/maps"

	"github.com/pkordes/visit-tracker/internal/domain"
)

const (
	earthRadiusMiles = 3958.8
	metersPerMile    = 1609.344
)

// MileageCalculator computes the mileage of a leg from its two endpoints.
type MileageCalculator interface {
	Miles(ctx context.Context, from, to domain.Point) (float64, error)
}

// GreatCircle measures straight-line distance over the Earth's surface.
type GreatCircle struct{}

// Miles returns the great-circle distance between from and to, rounded to
// a tenth of a mile.
func (GreatCircle) Miles(_ context.Context, from, to domain.Point) (float64, error) {
	return RoundMiles(GreatCircleMiles(from, to)), nil
}

// GreatCircleMiles returns the unrounded great-circle distance in miles.
func GreatCircleMiles(from, to domain.Point) float64 {
	p1 := s2.LatLngFromDegrees(from.Latitude, from.Longitude)
	p2 := s2.LatLngFromDegrees(to.Latitude, to.Longitude)
	return p1.Distance(p2).Radians() * earthRadiusMiles
}

// RoundMiles rounds to one decimal place, the precision mileage is stored at.
func RoundMiles(m float64) float64 {
	return math.Round(m*10) / 10
}

// distanceMatrixClient is the subset of *maps.Client used by Routed.
type distanceMatrixClient interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
}

// Routed asks the Google Distance Matrix API for driving distance and falls
// back to great-circle distance when the API fails or has no route.
type Routed struct {
	client   distanceMatrixClient
	fallback MileageCalculator
	log      *slog.Logger
}

// NewRouted builds a Routed calculator authenticated with apiKey.
func NewRouted(apiKey string, log *slog.Logger) (*Routed, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("geo.NewRouted: %w", err)
	}
	return newRouted(c, log), nil
}

func newRouted(c distanceMatrixClient, log *slog.Logger) *Routed {
	if log == nil {
		log = slog.Default()
	}
	return &Routed{client: c, fallback: GreatCircle{}, log: log}
}

// Miles returns routed driving miles, rounded to a tenth of a mile.
func (r *Routed) Miles(ctx context.Context, from, to domain.Point) (float64, error) {
	resp, err := r.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(from)},
		Destinations: []string{latLng(to)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsImperial,
	})
	if err != nil {
		r.log.WarnContext(ctx, "distance matrix failed, using great-circle", "error", err)
		return r.fallback.Miles(ctx, from, to)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		r.log.WarnContext(ctx, "distance matrix returned no rows, using great-circle")
		return r.fallback.Miles(ctx, from, to)
	}
	el := resp.Rows[0].Elements[0]
	if el == nil || el.Status != "OK" {
		r.log.WarnContext(ctx, "distance matrix returned no route, using great-circle")
		return r.fallback.Miles(ctx, from, to)
	}
	return RoundMiles(float64(el.Distance.Meters) / metersPerMile), nil
}

func latLng(p domain.Point) string {
	return fmt.Sprintf("%f,%f", p.Latitude, p.Longitude)
}

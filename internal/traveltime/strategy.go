package traveltime

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geo"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
)

const mapsService = "google_maps"

// Estimate is the travel result for one destination.
type Estimate struct {
	Minutes    int
	DistanceKm float64
	// Estimated is true when the value came from Haversine rather than routing.
	Estimated bool
}

// Strategy computes estimates for an ordered destination list. The result is
// positionally aligned with dests and has no nil elements.
type Strategy interface {
	Name() string
	Compute(ctx context.Context, origin geo.Point, dests []Destination) ([]*Estimate, error)
}

// BatchStrategy issues a single distance-matrix request for all destinations.
// Elements the provider could not route are estimated by Haversine.
type BatchStrategy struct {
	client google.Client
	guard  *resilience.Guard
}

// NewBatchStrategy creates a BatchStrategy.
func NewBatchStrategy(client google.Client, guard *resilience.Guard) *BatchStrategy {
	return &BatchStrategy{client: client, guard: guard}
}

func (s *BatchStrategy) Name() string { return "batch" }

func (s *BatchStrategy) Compute(ctx context.Context, origin geo.Point, dests []Destination) ([]*Estimate, error) {
	if s.client == nil {
		return nil, eris.New("traveltime: batch strategy requires a maps client")
	}
	if len(dests) > google.MaxDestinations {
		return nil, eris.Errorf("traveltime: %d destinations exceeds batch limit %d", len(dests), google.MaxDestinations)
	}

	strs := make([]string, len(dests))
	for i, d := range dests {
		strs[i] = fmt.Sprintf("%f,%f", d.Lat, d.Lon)
	}

	legs, err := resilience.Call(ctx, s.guard, mapsService, "distance_matrix", func(ctx context.Context) ([]*google.Leg, error) {
		return s.client.DistanceMatrix(ctx, google.LatLng{Lat: origin.Lat, Lon: origin.Lon}, strs)
	})
	if err != nil {
		return nil, eris.Wrap(err, "traveltime: batch distance matrix")
	}
	if len(legs) != len(dests) {
		return nil, eris.Errorf("traveltime: got %d results for %d destinations", len(legs), len(dests))
	}

	out := make([]*Estimate, len(dests))
	for i, leg := range legs {
		if out[i] = fromLeg(leg); out[i] == nil {
			out[i] = EstimateByHaversine(origin, geo.Point{Lat: dests[i].Lat, Lon: dests[i].Lon})
		}
	}
	return out, nil
}

// PerDestinationStrategy queries each destination separately and falls back
// to a Haversine estimate when routing is unavailable.
type PerDestinationStrategy struct {
	client google.Client
	guard  *resilience.Guard
}

// NewPerDestinationStrategy creates a PerDestinationStrategy. client may be nil.
func NewPerDestinationStrategy(client google.Client, guard *resilience.Guard) *PerDestinationStrategy {
	return &PerDestinationStrategy{client: client, guard: guard}
}

func (s *PerDestinationStrategy) Name() string { return "per_destination" }

func (s *PerDestinationStrategy) Compute(ctx context.Context, origin geo.Point, dests []Destination) ([]*Estimate, error) {
	out := make([]*Estimate, len(dests))
	for i, d := range dests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.client != nil {
			est, err := s.route(ctx, origin, d)
			if err == nil && est != nil {
				out[i] = est
				continue
			}
			if err != nil {
				zap.L().Debug("traveltime: routing failed, estimating",
					zap.String("destination", d.Name),
					zap.Error(err),
				)
			}
		}
		out[i] = EstimateByHaversine(origin, geo.Point{Lat: d.Lat, Lon: d.Lon})
	}
	return out, nil
}

func (s *PerDestinationStrategy) route(ctx context.Context, origin geo.Point, d Destination) (*Estimate, error) {
	dest := []string{fmt.Sprintf("%f,%f", d.Lat, d.Lon)}
	legs, err := resilience.Call(ctx, s.guard, mapsService, "distance_matrix", func(ctx context.Context) ([]*google.Leg, error) {
		return s.client.DistanceMatrix(ctx, google.LatLng{Lat: origin.Lat, Lon: origin.Lon}, dest)
	})
	if err != nil {
		return nil, err
	}
	if len(legs) != 1 {
		return nil, eris.Errorf("traveltime: got %d results for 1 destination", len(legs))
	}
	return fromLeg(legs[0]), nil
}

func fromLeg(leg *google.Leg) *Estimate {
	if leg == nil {
		return nil
	}
	return &Estimate{
		Minutes:    int(math.Round(float64(leg.DurationS) / 60)),
		DistanceKm: float64(leg.DistanceM) / 1000,
	}
}

// Road distance is longer than the great-circle distance by roughly this factor.
const roadFactor = 1.2

// EstimateByHaversine estimates a drive from straight-line distance, with
// average speed rising for longer trips.
func EstimateByHaversine(from, to geo.Point) *Estimate {
	km := from.Distance(to) * roadFactor

	speed := 65.0
	switch {
	case km < 20:
		speed = 45
	case km < 50:
		speed = 55
	}

	minutes := int(math.Round(km / speed * 60))
	if km > 0 && minutes < 1 {
		minutes = 1
	}
	return &Estimate{Minutes: minutes, DistanceKm: km, Estimated: true}
}

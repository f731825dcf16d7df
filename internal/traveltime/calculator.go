package traveltime

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geo"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
)

// Leg is the chosen result for one category.
type Leg struct {
	Name      string
	Minutes   int
	Km        int
	Estimated bool
}

// Summary holds the per-category results of one computation.
type Summary struct {
	CityA    *Leg
	CityB    *Leg
	Beach    *Leg
	Airport  *Leg
	Train    *Leg
	Hospital *Leg
	Police   *Leg
	Strategy string
}

// Calculator picks a strategy and folds per-destination results into a Summary.
type Calculator struct {
	batch    Strategy
	fallback Strategy
}

// NewCalculator creates a Calculator. With a nil client every computation
// uses Haversine estimates.
func NewCalculator(client google.Client, guard *resilience.Guard) *Calculator {
	c := &Calculator{fallback: NewPerDestinationStrategy(client, guard)}
	if client != nil {
		c.batch = NewBatchStrategy(client, guard)
	}
	return c
}

// NewCalculatorWithStrategies creates a Calculator from explicit strategies.
// batch may be nil.
func NewCalculatorWithStrategies(batch, fallback Strategy) *Calculator {
	return &Calculator{batch: batch, fallback: fallback}
}

// Compute returns travel results from origin to every destination category.
func (c *Calculator) Compute(ctx context.Context, origin geo.Point, cities model.CityPair) (*Summary, error) {
	dests := Destinations(cities)

	var (
		ests     []*Estimate
		strategy Strategy
	)
	if c.batch != nil {
		var err error
		ests, err = c.batch.Compute(ctx, origin, dests)
		if err != nil {
			zap.L().Warn("traveltime: batch failed, falling back", zap.Error(err))
			ests = nil
		} else {
			strategy = c.batch
		}
	}
	if ests == nil {
		if c.fallback == nil {
			return nil, eris.New("traveltime: no strategy available")
		}
		var err error
		ests, err = c.fallback.Compute(ctx, origin, dests)
		if err != nil {
			return nil, eris.Wrap(err, "traveltime: compute")
		}
		strategy = c.fallback
	}
	if len(ests) != len(dests) {
		return nil, eris.Errorf("traveltime: %s returned %d results for %d destinations", strategy.Name(), len(ests), len(dests))
	}

	s := &Summary{Strategy: strategy.Name()}
	for i, d := range dests {
		e := ests[i]
		if e == nil {
			continue
		}
		leg := &Leg{
			Name:      d.Name,
			Minutes:   e.Minutes,
			Km:        int(math.Round(e.DistanceKm)),
			Estimated: e.Estimated,
		}
		switch d.Category {
		case CategoryCityA:
			s.CityA = leg
		case CategoryCityB:
			s.CityB = leg
		case CategoryBeach:
			leg.Name = beachLabel(d.Name)
			s.Beach = nearer(s.Beach, leg)
		case CategoryAirport:
			s.Airport = nearer(s.Airport, leg)
		case CategoryTrain:
			s.Train = nearer(s.Train, leg)
		case CategoryHospital:
			s.Hospital = nearer(s.Hospital, leg)
		case CategoryPolice:
			s.Police = nearer(s.Police, leg)
		}
	}
	return s, nil
}

func nearer(cur, cand *Leg) *Leg {
	if cur == nil || cand.Minutes < cur.Minutes {
		return cand
	}
	return cur
}

func beachLabel(name string) string {
	for _, prefix := range []string{"Playa del ", "Playa de "} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// Apply writes the summary into the listing's travel fields. Categories
// without a result keep their previous values.
func Apply(l *model.Listing, s *Summary) {
	t := &l.Travel
	put(s.CityA, &t.TimeCityA, &t.DistanceCityA, &t.CityA)
	put(s.CityB, &t.TimeCityB, &t.DistanceCityB, &t.CityB)
	put(s.Beach, &t.TimeBeach, &t.DistanceBeach, &t.NearestBeach)
	put(s.Airport, &t.TimeAirport, &t.DistanceAirport, &t.NearestAirport)
	put(s.Train, &t.TimeTrain, &t.DistanceTrain, &t.NearestTrain)
	put(s.Hospital, &t.TimeHospital, &t.DistanceHospital, &t.NearestHospital)
	put(s.Police, &t.TimePolice, &t.DistancePolice, &t.NearestPolice)
}

func put(leg *Leg, minutes, km **int, label *string) {
	if leg == nil {
		return
	}
	*minutes = model.Int(leg.Minutes)
	*km = model.Int(leg.Km)
	*label = leg.Name
}

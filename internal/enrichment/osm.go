package enrichment

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/osm"
)

const (
	osmService = "overpass"
	osmRadiusM = 2000
)

// AmenitySource queries OpenStreetMap amenities around a point.
type AmenitySource interface {
	AmenitiesNear(ctx context.Context, lat, lon float64, radiusM int, tagRegex string) ([]osm.Element, error)
}

// OSMEnricher counts nearby amenities by type.
type OSMEnricher struct {
	source AmenitySource
	guard  *resilience.Guard
}

// NewOSMEnricher creates an OSMEnricher. source may be nil.
func NewOSMEnricher(source AmenitySource, guard *resilience.Guard) *OSMEnricher {
	return &OSMEnricher{source: source, guard: guard}
}

// Enrich replaces Amenities.OSMCounts.
func (e *OSMEnricher) Enrich(ctx context.Context, l *model.Listing) (map[string]any, error) {
	if e.source == nil {
		return nil, errSkipped
	}
	if !l.HasLocation() {
		return nil, errNoLocation
	}

	lat, lon := *l.Lat, *l.Lon
	elems, err := resilience.Call(ctx, e.guard, osmService, "amenities", func(ctx context.Context) ([]osm.Element, error) {
		return e.source.AmenitiesNear(ctx, lat, lon, osmRadiusM, osm.DefaultAmenityPattern)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: overpass amenities")
	}

	counts := osm.CountAmenities(elems)
	l.Amenities.OSMCounts = counts
	return map[string]any{"elements": len(elems), "types": len(counts)}, nil
}

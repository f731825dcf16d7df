package enrichment

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
)

const mapsService = "google_maps"

// macroDestinations are routed from every listing.
var macroDestinations = []struct {
	key   string
	query string
}{
	{"madrid", "Madrid, Spain"},
	{"barcelona", "Barcelona, Spain"},
	{"valencia", "Valencia, Spain"},
}

// MapsEnricher records drive distance and duration to the major cities and
// the listing's own town center.
type MapsEnricher struct {
	client google.Client
	guard  *resilience.Guard
}

// NewMapsEnricher creates a MapsEnricher. client may be nil.
func NewMapsEnricher(client google.Client, guard *resilience.Guard) *MapsEnricher {
	return &MapsEnricher{client: client, guard: guard}
}

// Enrich replaces Transport.Routes.
func (e *MapsEnricher) Enrich(ctx context.Context, l *model.Listing) (map[string]any, error) {
	if e.client == nil {
		return nil, errSkipped
	}
	if !l.HasLocation() {
		return nil, errNoLocation
	}

	keys := make([]string, 0, len(macroDestinations)+1)
	dests := make([]string, 0, len(macroDestinations)+1)
	for _, d := range macroDestinations {
		keys = append(keys, d.key)
		dests = append(dests, d.query)
	}
	if m := strings.TrimSpace(l.Municipality); m != "" {
		keys = append(keys, routeKey(m)+"_city_center")
		dests = append(dests, m+" city center, Spain")
	}

	origin := google.LatLng{Lat: *l.Lat, Lon: *l.Lon}
	legs, err := resilience.Call(ctx, e.guard, mapsService, "distance_matrix", func(ctx context.Context) ([]*google.Leg, error) {
		return e.client.DistanceMatrix(ctx, origin, dests)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: maps distance matrix")
	}
	if len(legs) != len(dests) {
		return nil, eris.Errorf("enrichment: maps returned %d results for %d destinations", len(legs), len(dests))
	}

	routes := make(map[string]model.RouteLeg, len(legs))
	for i, leg := range legs {
		if leg == nil {
			continue
		}
		routes[keys[i]] = model.RouteLeg{DistanceM: leg.DistanceM, DurationS: leg.DurationS}
	}
	l.Transport.Routes = routes

	return map[string]any{"destinations": len(dests), "routes": len(routes)}, nil
}

func routeKey(municipality string) string {
	f := textnorm.Fold(municipality)
	if i := strings.Index(f, ","); i >= 0 {
		f = f[:i]
	}
	return strings.Join(strings.Fields(f), "_")
}

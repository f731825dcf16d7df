package enrichment

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geo"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
)

const placesService = "google_places"

// Facility kinds searched by the places phase.
const (
	FacilitySupermarket = "supermarket"
	FacilitySchool      = "school"
	FacilityHospital    = "hospital"
	FacilityRestaurant  = "restaurant"
	FacilityCafe        = "cafe"
	FacilityTrain       = "train_station"
	FacilityBus         = "bus_station"
	FacilityAirport     = "airport"
)

const (
	defaultRadiusM = 5000
	airportRadiusM = 100000

	amenitySpeedKmh        = 40
	transitSpeedKmh        = 50
	distantAirportSpeedKmh = 80
)

type facility struct {
	kind    string
	types   []string
	speed   float64
	transit bool
	rated   bool
}

// taxonomy lists every facility in search order with the place types that count for it.
var taxonomy = []facility{
	{kind: FacilitySupermarket, types: []string{"supermarket", "grocery_or_supermarket"}, speed: amenitySpeedKmh},
	{kind: FacilitySchool, types: []string{"school", "primary_school", "secondary_school"}, speed: amenitySpeedKmh, rated: true},
	{kind: FacilityHospital, types: []string{"hospital", "doctor"}, speed: amenitySpeedKmh},
	{kind: FacilityRestaurant, types: []string{"restaurant"}, speed: amenitySpeedKmh, rated: true},
	{kind: FacilityCafe, types: []string{"cafe"}, speed: amenitySpeedKmh, rated: true},
	{kind: FacilityTrain, types: []string{"train_station", "subway_station"}, speed: transitSpeedKmh, transit: true},
	{kind: FacilityBus, types: []string{"bus_station"}, speed: transitSpeedKmh, transit: true},
	{kind: FacilityAirport, types: []string{"airport"}, speed: transitSpeedKmh, transit: true},
}

// TravelMinutes converts a distance to whole minutes at speedKmh, with a
// one-minute floor.
func TravelMinutes(distanceM, speedKmh float64) int {
	m := int(math.Round(distanceM / 1000 * 60 / speedKmh))
	if m < 1 {
		return 1
	}
	return m
}

// PlacesEnricher fills amenity, transit and service-rating facts from nearby
// search, or from a location-type profile when search is unavailable.
type PlacesEnricher struct {
	client google.Client
	guard  *resilience.Guard
}

// NewPlacesEnricher creates a PlacesEnricher. client may be nil.
func NewPlacesEnricher(client google.Client, guard *resilience.Guard) *PlacesEnricher {
	return &PlacesEnricher{client: client, guard: guard}
}

type nearest struct {
	prox   *model.Proximity
	rating *float64
}

// Enrich overwrites the listing's nearest-facility facts and service ratings.
func (e *PlacesEnricher) Enrich(ctx context.Context, l *model.Listing) (map[string]any, error) {
	if !l.HasLocation() {
		return nil, errNoLocation
	}
	origin := geo.Point{Lat: *l.Lat, Lon: *l.Lon}

	if e.client == nil {
		profile := ApplyFallbackProfile(l)
		return map[string]any{"source": "fallback", "profile": profile}, nil
	}

	found := make(map[string]nearest)
	queries, failures := 0, 0
	for _, f := range taxonomy {
		res, q, failed := e.search(ctx, origin, f, defaultRadiusM, f.speed)
		if f.kind == FacilityAirport && res.prox == nil && ctx.Err() == nil {
			var q2, failed2 int
			res, q2, failed2 = e.search(ctx, origin, f, airportRadiusM, distantAirportSpeedKmh)
			q += q2
			failed += failed2
		}
		queries += q
		failures += failed
		if res.prox != nil || res.rating != nil {
			found[f.kind] = res
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failures == queries {
		zap.L().Warn("enrichment: every places query failed, using fallback profile",
			zap.Int64("listing_id", l.ID),
			zap.Int("queries", queries),
		)
		profile := ApplyFallbackProfile(l)
		return map[string]any{"source": "fallback", "profile": profile, "failed_queries": failures}, nil
	}

	l.Amenities.Supermarket = found[FacilitySupermarket].prox
	l.Amenities.School = found[FacilitySchool].prox
	l.Amenities.Hospital = found[FacilityHospital].prox
	l.Amenities.Restaurant = found[FacilityRestaurant].prox
	l.Amenities.Cafe = found[FacilityCafe].prox
	l.Amenities.Estimated = false
	l.Transport.TrainStation = found[FacilityTrain].prox
	l.Transport.BusStation = found[FacilityBus].prox
	l.Transport.Airport = found[FacilityAirport].prox
	l.Services = model.ServicesQuality{
		SchoolRating:     found[FacilitySchool].rating,
		RestaurantRating: found[FacilityRestaurant].rating,
		CafeRating:       found[FacilityCafe].rating,
	}

	return map[string]any{
		"source":         "google",
		"found":          len(found),
		"queries":        queries,
		"failed_queries": failures,
	}, nil
}

// search queries every place type of f and returns the nearest result plus
// the average rating for rated facilities.
func (e *PlacesEnricher) search(ctx context.Context, origin geo.Point, f facility, radiusM int, speed float64) (nearest, int, int) {
	var (
		out           nearest
		best          = math.Inf(1)
		ratingSum     float64
		ratingCount   int
		queries, fail int
	)
	for _, typ := range f.types {
		if ctx.Err() != nil {
			break
		}
		queries++
		req := google.NearbyRequest{Lat: origin.Lat, Lon: origin.Lon, Type: typ, RadiusM: radiusM}
		places, err := resilience.Call(ctx, e.guard, placesService, "nearby", func(ctx context.Context) ([]google.Place, error) {
			return e.client.Nearby(ctx, req)
		})
		if err != nil {
			fail++
			zap.L().Debug("enrichment: nearby search failed",
				zap.String("type", typ),
				zap.Int("radius_m", radiusM),
				zap.Error(err),
			)
			continue
		}
		for _, p := range places {
			d := geo.DistanceMeters(origin.Lat, origin.Lon, p.Lat, p.Lon)
			if d < best {
				best = d
			}
			if f.rated && p.Rating != nil {
				ratingSum += *p.Rating
				ratingCount++
			}
		}
	}

	if !math.IsInf(best, 1) {
		out.prox = &model.Proximity{DistanceM: math.Round(best), TravelMinutes: TravelMinutes(best, speed)}
	}
	if ratingCount > 0 {
		avg := math.Round(ratingSum/float64(ratingCount)*100) / 100
		out.rating = &avg
	}
	return out, queries, fail
}

// LocationProfile is a municipality class with typical facility distances.
type LocationProfile string

const (
	ProfileUrban   LocationProfile = "urban"
	ProfileCoastal LocationProfile = "coastal"
	ProfileRural   LocationProfile = "rural"
)

var (
	urbanTowns   = []string{"gijon", "oviedo", "aviles", "santander", "torrelavega"}
	coastalTowns = []string{
		"llanes", "ribadesella", "comillas", "suances", "san vicente", "luarca", "cudillero",
		"laredo", "castro urdiales", "noja", "villaviciosa", "colunga", "ribadedeva",
	}
)

// fallbackDistances holds typical distances in meters per facility kind.
var fallbackDistances = map[LocationProfile]map[string]float64{
	ProfileUrban: {
		FacilitySupermarket: 800, FacilitySchool: 1000, FacilityHospital: 3000,
		FacilityRestaurant: 500, FacilityCafe: 400,
		FacilityTrain: 2000, FacilityBus: 600, FacilityAirport: 25000,
	},
	ProfileCoastal: {
		FacilitySupermarket: 1500, FacilitySchool: 2000, FacilityHospital: 12000,
		FacilityRestaurant: 800, FacilityCafe: 700,
		FacilityTrain: 8000, FacilityBus: 1500, FacilityAirport: 45000,
	},
	ProfileRural: {
		FacilitySupermarket: 5000, FacilitySchool: 6000, FacilityHospital: 25000,
		FacilityRestaurant: 4000, FacilityCafe: 4000,
		FacilityTrain: 15000, FacilityBus: 5000, FacilityAirport: 60000,
	},
}

// FallbackProfile classifies a municipality as urban, coastal or rural.
func FallbackProfile(municipality string) LocationProfile {
	switch {
	case textnorm.ContainsAny(municipality, urbanTowns):
		return ProfileUrban
	case textnorm.ContainsAny(municipality, coastalTowns):
		return ProfileCoastal
	}
	return ProfileRural
}

// ApplyFallbackProfile writes estimated facility facts for the listing's
// location type. Service ratings are left untouched.
func ApplyFallbackProfile(l *model.Listing) LocationProfile {
	profile := FallbackProfile(l.Municipality)
	d := fallbackDistances[profile]

	prox := func(f facility) *model.Proximity {
		m := d[f.kind]
		return &model.Proximity{DistanceM: m, TravelMinutes: TravelMinutes(m, f.speed)}
	}
	byKind := make(map[string]*model.Proximity, len(taxonomy))
	for _, f := range taxonomy {
		byKind[f.kind] = prox(f)
	}

	l.Amenities.Supermarket = byKind[FacilitySupermarket]
	l.Amenities.School = byKind[FacilitySchool]
	l.Amenities.Hospital = byKind[FacilityHospital]
	l.Amenities.Restaurant = byKind[FacilityRestaurant]
	l.Amenities.Cafe = byKind[FacilityCafe]
	l.Amenities.Estimated = true
	l.Transport.TrainStation = byKind[FacilityTrain]
	l.Transport.BusStation = byKind[FacilityBus]
	l.Transport.Airport = byKind[FacilityAirport]
	return profile
}

// Package model defines the listing, scoring and enrichment-run types shared
// across the pipeline.
package model

import "time"

// Accuracy classifies how trustworthy a geocoded coordinate is.
type Accuracy string

const (
	AccuracyPrecise     Accuracy = "precise"
	AccuracyApproximate Accuracy = "approximate"
	AccuracyRegional    Accuracy = "regional"
	AccuracyUnknown     Accuracy = "unknown"
)

// Valid reports whether a is one of the four accuracy tags.
func (a Accuracy) Valid() bool {
	switch a {
	case AccuracyPrecise, AccuracyApproximate, AccuracyRegional, AccuracyUnknown:
		return true
	}
	return false
}

// Land types recognized by the scorers.
const (
	LandTypeDeveloped = "developed"
	LandTypeBuildable = "buildable"
)

// Listing is a single ingested land record and its enrichment state.
type Listing struct {
	ID           int64    `json:"id"`
	SourceID     string   `json:"source_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	Description  string   `json:"description,omitempty"`
	Municipality string   `json:"municipality,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Area         *float64 `json:"area,omitempty"`
	LandType     string   `json:"land_type,omitempty"`
	LegalStatus  string   `json:"legal_status,omitempty"`

	Lat      *float64 `json:"location_lat,omitempty"`
	Lon      *float64 `json:"location_lon,omitempty"`
	Accuracy Accuracy `json:"location_accuracy,omitempty"`

	Infrastructure InfrastructureFacts `json:"infrastructure_basic"`
	Amenities      AmenityFacts        `json:"infrastructure_extended"`
	Transport      TransportFacts      `json:"transport"`
	Environment    EnvironmentFacts    `json:"environment"`
	Services       ServicesQuality     `json:"services_quality"`
	Extra          map[string]any      `json:"extra,omitempty"`

	ScoreTotal      *float64 `json:"score_total,omitempty"`
	ScoreInvestment *float64 `json:"score_investment,omitempty"`
	ScoreLifestyle  *float64 `json:"score_lifestyle,omitempty"`

	Travel TravelFacts `json:"travel"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (l *Listing) HasLocation() bool {
	return l.Lat != nil && l.Lon != nil
}

// SetLocation stores coordinates together with their accuracy tag. An
// invalid or empty tag is recorded as unknown.
func (l *Listing) SetLocation(lat, lon float64, acc Accuracy) {
	if !acc.Valid() {
		acc = AccuracyUnknown
	}
	l.Lat = &lat
	l.Lon = &lon
	l.Accuracy = acc
}

// InfrastructureFacts holds utility availability. Nil means not recorded.
type InfrastructureFacts struct {
	Electricity *bool `json:"electricity,omitempty"`
	Water       *bool `json:"water,omitempty"`
	Internet    *bool `json:"internet,omitempty"`
	Gas         *bool `json:"gas,omitempty"`
}

// Recorded reports whether any utility has structured data.
func (f InfrastructureFacts) Recorded() bool {
	return f.Electricity != nil || f.Water != nil || f.Internet != nil || f.Gas != nil
}

// Proximity is the nearest facility of one kind.
type Proximity struct {
	DistanceM     float64 `json:"distance_m"`
	TravelMinutes int     `json:"travel_time_min"`
}

// AmenityFacts holds nearest-amenity data from the places phase and the OSM
// fallback counts.
type AmenityFacts struct {
	Supermarket *Proximity     `json:"supermarket,omitempty"`
	School      *Proximity     `json:"school,omitempty"`
	Hospital    *Proximity     `json:"hospital,omitempty"`
	Restaurant  *Proximity     `json:"restaurant,omitempty"`
	Cafe        *Proximity     `json:"cafe,omitempty"`
	OSMCounts   map[string]int `json:"osm_amenities,omitempty"`
	Estimated   bool           `json:"estimated,omitempty"`
}

// Recorded reports whether any amenity data is present.
func (f AmenityFacts) Recorded() bool {
	return f.Supermarket != nil || f.School != nil || f.Hospital != nil ||
		f.Restaurant != nil || f.Cafe != nil || len(f.OSMCounts) > 0
}

// RouteLeg is a raw distance-matrix result to a macro destination.
type RouteLeg struct {
	DistanceM int `json:"distance_m"`
	DurationS int `json:"duration_s"`
}

// TransportFacts holds transit accessibility. A nil facility is unavailable.
type TransportFacts struct {
	TrainStation *Proximity          `json:"train_station,omitempty"`
	BusStation   *Proximity          `json:"bus_station,omitempty"`
	Airport      *Proximity          `json:"airport,omitempty"`
	Highway      *Proximity          `json:"highway,omitempty"`
	Routes       map[string]RouteLeg `json:"routes,omitempty"`
}

// Recorded reports whether any transit facility is present.
func (f TransportFacts) Recorded() bool {
	return f.TrainStation != nil || f.BusStation != nil || f.Airport != nil || f.Highway != nil
}

// EnvironmentFacts holds view flags, orientation and the latest score breakdown.
type EnvironmentFacts struct {
	SeaView      *bool           `json:"sea_view,omitempty"`
	MountainView *bool           `json:"mountain_view,omitempty"`
	ForestView   *bool           `json:"forest_view,omitempty"`
	Orientation  string          `json:"orientation,omitempty"`
	CoastChecked bool            `json:"coast_checked,omitempty"`
	Scoring      *ScoreBreakdown `json:"scoring,omitempty"`
}

// Recorded reports whether view or orientation data is present.
func (f EnvironmentFacts) Recorded() bool {
	return f.SeaView != nil || f.MountainView != nil || f.ForestView != nil || f.Orientation != ""
}

// ServicesQuality holds average ratings of nearby services.
type ServicesQuality struct {
	SchoolRating     *float64 `json:"school_avg_rating,omitempty"`
	RestaurantRating *float64 `json:"restaurant_avg_rating,omitempty"`
	CafeRating       *float64 `json:"cafe_avg_rating,omitempty"`
}

// Ratings returns the ratings that are present.
func (s ServicesQuality) Ratings() []float64 {
	var out []float64
	for _, r := range []*float64{s.SchoolRating, s.RestaurantRating, s.CafeRating} {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// TravelFacts holds travel time (minutes) and distance (km) to the named
// destinations.
type TravelFacts struct {
	TimeCityA    *int `json:"travel_time_city_a,omitempty"`
	TimeCityB    *int `json:"travel_time_city_b,omitempty"`
	TimeBeach    *int `json:"travel_time_nearest_beach,omitempty"`
	TimeAirport  *int `json:"travel_time_airport,omitempty"`
	TimeTrain    *int `json:"travel_time_train_station,omitempty"`
	TimeHospital *int `json:"travel_time_hospital,omitempty"`
	TimePolice   *int `json:"travel_time_police,omitempty"`

	DistanceCityA    *int `json:"distance_city_a,omitempty"`
	DistanceCityB    *int `json:"distance_city_b,omitempty"`
	DistanceBeach    *int `json:"distance_nearest_beach,omitempty"`
	DistanceAirport  *int `json:"distance_airport,omitempty"`
	DistanceTrain    *int `json:"distance_train_station,omitempty"`
	DistanceHospital *int `json:"distance_hospital,omitempty"`
	DistancePolice   *int `json:"distance_police,omitempty"`

	NearestBeach    string `json:"nearest_beach_name,omitempty"`
	NearestAirport  string `json:"nearest_airport,omitempty"`
	NearestTrain    string `json:"nearest_train_station,omitempty"`
	NearestHospital string `json:"nearest_hospital,omitempty"`
	NearestPolice   string `json:"nearest_police,omitempty"`
	CityA           string `json:"city_a,omitempty"`
	CityB           string `json:"city_b,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

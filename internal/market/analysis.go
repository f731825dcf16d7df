// Package market estimates construction value and rental returns for a plot
// from regional cost and rent tables.
package market

import (
	"math"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
)

// LocationType selects the yield and rent tables.
type LocationType string

const (
	LocationUrban    LocationType = "urban"
	LocationSuburban LocationType = "suburban"
	LocationRural    LocationType = "rural"
)

// Tier is the construction quality tier.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Average yields (%) and rents (€/m²/month) by location type.
var (
	expectedYield = map[LocationType]float64{LocationUrban: 4.5, LocationSuburban: 5.0, LocationRural: 6.0}
	rentPerM2     = map[LocationType]float64{LocationUrban: 10, LocationSuburban: 8, LocationRural: 7}
)

// Construction cost (€/m²) by tier.
var constructionCost = map[Tier]float64{TierBasic: 1000, TierPremium: 1500}

const (
	developedBuildability = 0.25
	defaultBuildability   = 0.20
	operatingExpenseRatio = 0.25
	premiumThreshold      = 65
)

var urbanMunicipalities = []string{"gijon", "oviedo", "aviles"}

// PremiumMunicipalities and SecondaryMunicipalities are the folded names of
// the location tiers shared with the location-quality scorer.
var (
	PremiumMunicipalities   = []string{"gijon", "oviedo", "aviles", "santander", "madrid", "barcelona"}
	SecondaryMunicipalities = []string{"suances", "ribadedeva", "llanes", "ribadesella", "comillas", "cudillero", "villaviciosa"}
)

// Analysis is the rental estimate for one listing.
type Analysis struct {
	LocationType    LocationType `json:"location_type"`
	Tier            Tier         `json:"construction_tier"`
	QualityPoints   int          `json:"quality_points"`
	BuildableM2     float64      `json:"buildable_area"`
	MonthlyRent     float64      `json:"monthly_rent"`
	AnnualRent      float64      `json:"annual_rent"`
	TotalInvestment float64      `json:"total_investment"`
	RentalYield     float64      `json:"rental_yield"`
	CapRate         float64      `json:"cap_rate"`
	Rating          string       `json:"investment_rating"`
}

// Analyze returns the rental analysis, or nil when neither price nor area is known.
func Analyze(l *model.Listing) *Analysis {
	if l.Price == nil && l.Area == nil {
		return nil
	}

	var price, area float64
	if l.Price != nil {
		price = *l.Price
	}
	if l.Area != nil {
		area = *l.Area
	}

	loc := ClassifyLocation(l.Municipality)
	points := QualityPoints(l)
	tier := TierBasic
	if points >= premiumThreshold {
		tier = TierPremium
	}

	ratio := defaultBuildability
	if l.LandType == model.LandTypeDeveloped {
		ratio = developedBuildability
	}

	a := &Analysis{LocationType: loc, Tier: tier, QualityPoints: points}
	a.BuildableM2 = area * ratio
	a.MonthlyRent = a.BuildableM2 * rentPerM2[loc]
	a.AnnualRent = a.MonthlyRent * 12
	a.TotalInvestment = price + a.BuildableM2*constructionCost[tier]

	if a.TotalInvestment > 0 {
		a.RentalYield = round2(a.AnnualRent / a.TotalInvestment * 100)
		a.CapRate = round2(a.AnnualRent * (1 - operatingExpenseRatio) / a.TotalInvestment * 100)
	} else {
		a.RentalYield = expectedYield[loc]
	}
	a.Rating = rating(a.RentalYield, a.CapRate)
	return a
}

// ClassifyLocation maps a municipality to its location type.
func ClassifyLocation(municipality string) LocationType {
	if textnorm.ContainsAny(municipality, urbanMunicipalities) {
		return LocationUrban
	}
	return LocationRural
}

// QualityPoints scores the objective plot characteristics that decide the
// construction tier.
func QualityPoints(l *model.Listing) int {
	points := 0

	switch l.LandType {
	case model.LandTypeDeveloped:
		points += 25
	case model.LandTypeBuildable:
		points += 20
	}

	switch {
	case textnorm.ContainsAny(l.Municipality, PremiumMunicipalities):
		points += 20
	case textnorm.ContainsAny(l.Municipality, SecondaryMunicipalities):
		points += 15
	default:
		points += 10
	}

	infra := l.Infrastructure
	count := 0
	for _, v := range []*bool{infra.Electricity, infra.Water, infra.Internet, infra.Gas} {
		if v != nil && *v {
			count++
		}
	}
	points += 20 * count / 4

	if l.Area != nil {
		switch a := *l.Area; {
		case a >= 1000 && a <= 5000:
			points += 15
		case a >= 500 && a < 1000:
			points += 10
		case a > 5000:
			points += 12
		default:
			points += 5
		}
	}

	if l.Transport.Recorded() {
		points += 10
	}
	if l.Environment.Recorded() {
		points += 10
	}
	return points
}

func rating(yield, capRate float64) string {
	switch {
	case yield >= 6 && capRate >= 5:
		return "excellent"
	case yield >= 5 && capRate >= 4:
		return "good"
	case yield >= 4 && capRate >= 3:
		return "moderate"
	}
	return "below_average"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}


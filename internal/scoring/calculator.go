// Package scoring computes per-criterion listing scores and blends them into
// investment, lifestyle and combined scores using normalized weights.
package scoring

import (
	"math"
	"strings"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/market"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
)

// Scorer scores one criterion from the listing alone.
type Scorer func(l *model.Listing) model.ScoreResult

// Calculator runs the ten criterion scorers.
type Calculator struct {
	scorers map[string]Scorer
}

// NewCalculator creates a Calculator with the built-in scorers.
func NewCalculator() *Calculator {
	return &Calculator{scorers: map[string]Scorer{
		model.CriterionInvestmentYield:         ScoreInvestmentYield,
		model.CriterionLocationQuality:         ScoreLocationQuality,
		model.CriterionTransport:               ScoreTransport,
		model.CriterionInfrastructureBasic:     ScoreInfrastructureBasic,
		model.CriterionInfrastructureExtended:  ScoreInfrastructureExtended,
		model.CriterionEnvironment:             ScoreEnvironment,
		model.CriterionPhysicalCharacteristics: ScorePhysicalCharacteristics,
		model.CriterionServicesQuality:         ScoreServicesQuality,
		model.CriterionLegalStatus:             ScoreLegalStatus,
		model.CriterionDevelopmentPotential:    ScoreDevelopmentPotential,
	}}
}

// Score returns a result for every criterion.
func (c *Calculator) Score(l *model.Listing) map[string]model.ScoreResult {
	out := make(map[string]model.ScoreResult, len(model.Criteria))
	for _, name := range model.Criteria {
		out[name] = c.scorers[name](l)
	}
	return out
}

var utilityKeywords = []struct {
	keywords []string
	value    func(model.InfrastructureFacts) *bool
}{
	{[]string{"electricidad", "luz", "eléctrico", "corriente"}, func(f model.InfrastructureFacts) *bool { return f.Electricity }},
	{[]string{"agua", "suministro agua", "abastecimiento", "red agua"}, func(f model.InfrastructureFacts) *bool { return f.Water }},
	{[]string{"internet", "fibra", "adsl", "wifi", "banda ancha"}, func(f model.InfrastructureFacts) *bool { return f.Internet }},
	{[]string{"gas", "butano", "propano", "gas natural"}, func(f model.InfrastructureFacts) *bool { return f.Gas }},
}

// ScoreInfrastructureBasic counts utilities confirmed either by a true
// structured value or by a keyword in the description.
func ScoreInfrastructureBasic(l *model.Listing) model.ScoreResult {
	signal := l.Infrastructure.Recorded()
	count := 0
	for _, u := range utilityKeywords {
		if v := u.value(l.Infrastructure); v != nil && *v {
			count++
			continue
		}
		if textnorm.ContainsAnyWord(l.Description, u.keywords) {
			signal = true
			count++
		}
	}
	if !signal {
		return model.Unavailable("no utility data")
	}
	return model.Score(float64(count) / 4 * 100)
}

// ScoreTransport sums distance-tiered points for each available facility.
func ScoreTransport(l *model.Listing) model.ScoreResult {
	t := l.Transport
	if !t.Recorded() {
		return model.Unavailable("no transport data")
	}
	score := 0.0
	for _, f := range []struct {
		p      *model.Proximity
		points float64
	}{
		{t.TrainStation, 30},
		{t.BusStation, 20},
		{t.Airport, 25},
		{t.Highway, 25},
	} {
		if f.p == nil {
			continue
		}
		score += f.points * transportTier(f.p.DistanceM/1000)
	}
	return model.Score(math.Min(100, score))
}

func transportTier(km float64) float64 {
	switch {
	case km <= 2:
		return 1.0
	case km <= 5:
		return 0.7
	case km <= 10:
		return 0.4
	}
	return 0.2
}

// ScoreEnvironment adds view bonuses and an orientation bonus.
func ScoreEnvironment(l *model.Listing) model.ScoreResult {
	e := l.Environment
	if !e.Recorded() {
		return model.Unavailable("no environment data")
	}
	score := 0.0
	if isTrue(e.SeaView) {
		score += 40
	}
	if isTrue(e.MountainView) {
		score += 30
	}
	if isTrue(e.ForestView) {
		score += 20
	}
	score += orientationBonus(e.Orientation)
	return model.Score(math.Min(100, score))
}

func orientationBonus(orientation string) float64 {
	o := strings.NewReplacer("-", "", "_", "", " ", "").Replace(textnorm.Fold(orientation))
	switch o {
	case "south", "sur":
		return 20
	case "southeast", "southwest", "sureste", "suroeste":
		return 15
	case "east", "west", "este", "oeste":
		return 10
	}
	return 0
}

const (
	yieldWeight   = 0.6
	capRateWeight = 0.4
)

// ScoreInvestmentYield blends the tiered rental yield and cap rate from the
// market analysis.
func ScoreInvestmentYield(l *model.Listing) model.ScoreResult {
	a := market.Analyze(l)
	if a == nil {
		return model.Unavailable("no price or area")
	}

	var sum, weight float64
	if a.TotalInvestment > 0 || a.RentalYield > 0 {
		sum += yieldTier(a.RentalYield) * yieldWeight
		weight += yieldWeight
	}
	if a.TotalInvestment > 0 {
		sum += yieldTier(a.CapRate) * capRateWeight
		weight += capRateWeight
	}
	if weight == 0 {
		return model.Unavailable("no yield or cap rate")
	}
	return model.Score(sum / weight)
}

func yieldTier(pct float64) float64 {
	switch {
	case pct >= 6:
		return math.Min(100, 90+(pct-6)*2.5)
	case pct >= 4:
		return 75
	case pct >= 2:
		return 50
	}
	return 20
}

// ScoreLegalStatus is 100 for developed land, 80 for buildable and 0 otherwise.
func ScoreLegalStatus(l *model.Listing) model.ScoreResult {
	if strings.TrimSpace(l.LandType) == "" && strings.TrimSpace(l.LegalStatus) == "" {
		return model.Unavailable("no land type or legal status")
	}
	for _, s := range []string{l.LandType, l.LegalStatus} {
		switch {
		case textnorm.ContainsWord(s, model.LandTypeDeveloped):
			return model.Score(100)
		case textnorm.ContainsWord(s, model.LandTypeBuildable):
			return model.Score(80)
		}
	}
	return model.Score(0)
}

// ScoreServicesQuality maps the mean nearby rating onto 0-100.
func ScoreServicesQuality(l *model.Listing) model.ScoreResult {
	ratings := l.Services.Ratings()
	if len(ratings) == 0 {
		return model.Unavailable("no service ratings")
	}
	sum := 0.0
	for _, r := range ratings {
		sum += r
	}
	return model.Score(clamp(sum / float64(len(ratings)) / 5 * 100))
}

// ScoreInfrastructureExtended averages distance tiers over the recorded
// amenities and adds a bonus for OSM amenity density.
func ScoreInfrastructureExtended(l *model.Listing) model.ScoreResult {
	a := l.Amenities
	if !a.Recorded() {
		return model.Unavailable("no amenity data")
	}

	var sum float64
	n := 0
	for _, p := range []*model.Proximity{a.Supermarket, a.School, a.Hospital, a.Restaurant, a.Cafe} {
		if p == nil {
			continue
		}
		sum += amenityTier(p.DistanceM / 1000)
		n++
	}
	base := 0.0
	if n > 0 {
		base = sum / float64(n)
	}

	total := 0
	for _, c := range a.OSMCounts {
		total += c
	}
	bonus := math.Min(10, float64(total))
	return model.Score(math.Min(100, base+bonus))
}

func amenityTier(km float64) float64 {
	switch {
	case km <= 1:
		return 100
	case km <= 3:
		return 75
	case km <= 5:
		return 50
	case km <= 10:
		return 25
	}
	return 10
}

var (
	flatKeywords  = []string{"llano", "plano", "flat", "level"}
	steepKeywords = []string{"pendiente", "desnivel", "steep", "slope"}
)

// ScorePhysicalCharacteristics rates plot size and terrain.
func ScorePhysicalCharacteristics(l *model.Listing) model.ScoreResult {
	if l.Area == nil {
		return model.Unavailable("no area")
	}

	var score float64
	switch area := *l.Area; {
	case area >= 1000 && area <= 5000:
		score = 80
	case area >= 500 && area < 1000:
		score = 65
	case area > 5000 && area <= 20000:
		score = 70
	case area > 20000:
		score = 55
	default:
		score = 40
	}

	if textnorm.ContainsAnyWord(l.Description, flatKeywords) {
		score += 10
	}
	if textnorm.ContainsAnyWord(l.Description, steepKeywords) {
		score -= 10
	}
	return model.Score(clamp(score))
}

// ScoreLocationQuality rates the municipality tier, adjusted by geocoding accuracy.
func ScoreLocationQuality(l *model.Listing) model.ScoreResult {
	if strings.TrimSpace(l.Municipality) == "" {
		return model.Unavailable("no municipality")
	}

	score := 50.0
	switch {
	case textnorm.ContainsAny(l.Municipality, market.PremiumMunicipalities):
		score = 85
	case textnorm.ContainsAny(l.Municipality, market.SecondaryMunicipalities):
		score = 70
	}

	switch l.Accuracy {
	case model.AccuracyPrecise:
		score += 10
	case model.AccuracyRegional:
		score -= 10
	}
	return model.Score(clamp(score))
}

var (
	urbanizationKeywords = []string{"urbanizable", "licencia", "proyecto", "edificable", "building permit"}
	protectedKeywords    = []string{"no urbanizable", "protegido", "protected", "rustico", "zona verde"}
)

// ScoreDevelopmentPotential rates how readily the plot can be built on.
func ScoreDevelopmentPotential(l *model.Listing) model.ScoreResult {
	hasPriceArea := l.Price != nil && l.Area != nil && *l.Area > 0
	if l.LandType == "" && strings.TrimSpace(l.Description) == "" && !hasPriceArea {
		return model.Unavailable("no development data")
	}

	var score float64
	switch l.LandType {
	case model.LandTypeDeveloped:
		score = 70
	case model.LandTypeBuildable:
		score = 60
	default:
		score = 30
	}

	text := textnorm.Fold(l.Description + " " + l.Title)
	protected := false
	for _, kw := range protectedKeywords {
		if strings.Contains(text, kw) {
			protected = true
			text = strings.ReplaceAll(text, kw, " ")
		}
	}
	if protected {
		score -= 25
	}
	if textnorm.ContainsAny(text, urbanizationKeywords) {
		score += 15
	}

	if hasPriceArea {
		perM2 := *l.Price / *l.Area
		switch {
		case perM2 < 30:
			score += 10
		case perM2 > 200:
			score -= 10
		}
	}
	return model.Score(clamp(score))
}

func isTrue(b *bool) bool { return b != nil && *b }

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

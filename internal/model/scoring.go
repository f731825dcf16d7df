package model

import "time"

// Profile names a weight vector over the scoring criteria.
type Profile string

const (
	ProfileInvestment Profile = "investment"
	ProfileLifestyle  Profile = "lifestyle"
	ProfileCombined   Profile = "combined"
)

// Valid reports whether p is a built-in profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileInvestment, ProfileLifestyle, ProfileCombined:
		return true
	}
	return false
}

// Criterion names.
const (
	CriterionInvestmentYield         = "investment_yield"
	CriterionLocationQuality         = "location_quality"
	CriterionTransport               = "transport"
	CriterionInfrastructureBasic     = "infrastructure_basic"
	CriterionInfrastructureExtended  = "infrastructure_extended"
	CriterionEnvironment             = "environment"
	CriterionPhysicalCharacteristics = "physical_characteristics"
	CriterionServicesQuality         = "services_quality"
	CriterionLegalStatus             = "legal_status"
	CriterionDevelopmentPotential    = "development_potential"
)

// Criteria lists the ten criterion names in presentation order.
var Criteria = []string{
	CriterionInvestmentYield,
	CriterionLocationQuality,
	CriterionTransport,
	CriterionInfrastructureBasic,
	CriterionInfrastructureExtended,
	CriterionEnvironment,
	CriterionPhysicalCharacteristics,
	CriterionServicesQuality,
	CriterionLegalStatus,
	CriterionDevelopmentPotential,
}

// IsCriterion reports whether name is one of the ten criteria.
func IsCriterion(name string) bool {
	for _, c := range Criteria {
		if c == name {
			return true
		}
	}
	return false
}

// ScoringCriterion is one persisted weight row.
type ScoringCriterion struct {
	Name      string    `json:"criteria_name" yaml:"name"`
	Profile   Profile   `json:"profile" yaml:"profile"`
	Weight    float64   `json:"weight" yaml:"weight"`
	Active    bool      `json:"active" yaml:"active"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// ScoreResult is either a score in [0,100] or an unavailable marker with a reason.
type ScoreResult struct {
	value     float64
	available bool
	reason    string
}

// Score returns an available result holding v.
func Score(v float64) ScoreResult {
	return ScoreResult{value: v, available: true}
}

// Unavailable returns a result that carries no score.
func Unavailable(reason string) ScoreResult {
	return ScoreResult{reason: reason}
}

// Value returns the score and whether it is available.
func (r ScoreResult) Value() (float64, bool) {
	return r.value, r.available
}

// Available reports whether the result holds a score.
func (r ScoreResult) Available() bool { return r.available }

// Reason explains why the result is unavailable.
func (r ScoreResult) Reason() string { return r.reason }

// Ptr returns the score as a pointer, nil when unavailable.
func (r ScoreResult) Ptr() *float64 {
	if !r.available {
		return nil
	}
	v := r.value
	return &v
}

// Mix is the investment/lifestyle blend for the combined score.
type Mix struct {
	Investment float64 `json:"investment" yaml:"investment"`
	Lifestyle  float64 `json:"lifestyle" yaml:"lifestyle"`
}

// DefaultMix is the built-in combined-score blend.
var DefaultMix = Mix{Investment: 0.32, Lifestyle: 0.68}

// ScoreBreakdown is the transparency record written on each scoring.
type ScoreBreakdown struct {
	Individual        map[string]*float64 `json:"individual_scores"`
	Unavailable       map[string]string   `json:"unavailable,omitempty"`
	Investment        float64             `json:"investment_score"`
	Lifestyle         float64             `json:"lifestyle_score"`
	Combined          float64             `json:"combined_score"`
	WeightsInvestment map[string]float64  `json:"weights_investment"`
	WeightsLifestyle  map[string]float64  `json:"weights_lifestyle"`
	Mix               Mix                 `json:"mix"`
	ScoredAt          time.Time           `json:"scored_at"`
}

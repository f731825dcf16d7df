package scoring

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// Weights maps criterion names to weights.
type Weights map[string]float64

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

var defaultWeights = map[model.Profile]Weights{
	model.ProfileInvestment: {
		model.CriterionInvestmentYield:         0.35,
		model.CriterionLocationQuality:         0.20,
		model.CriterionLegalStatus:             0.10,
		model.CriterionTransport:               0.10,
		model.CriterionInfrastructureBasic:     0.10,
		model.CriterionDevelopmentPotential:    0.08,
		model.CriterionPhysicalCharacteristics: 0.05,
		model.CriterionInfrastructureExtended:  0.02,
		model.CriterionServicesQuality:         0,
		model.CriterionEnvironment:             0,
	},
	model.ProfileLifestyle: {
		model.CriterionEnvironment:             0.22,
		model.CriterionServicesQuality:         0.18,
		model.CriterionLocationQuality:         0.20,
		model.CriterionTransport:               0.12,
		model.CriterionInfrastructureExtended:  0.10,
		model.CriterionInfrastructureBasic:     0.08,
		model.CriterionPhysicalCharacteristics: 0.05,
		model.CriterionLegalStatus:             0.03,
		model.CriterionDevelopmentPotential:    0.02,
		model.CriterionInvestmentYield:         0,
	},
	model.ProfileCombined: {
		model.CriterionInvestmentYield:         0.20,
		model.CriterionLocationQuality:         0.16,
		model.CriterionTransport:               0.12,
		model.CriterionInfrastructureBasic:     0.16,
		model.CriterionInfrastructureExtended:  0.08,
		model.CriterionEnvironment:             0.08,
		model.CriterionPhysicalCharacteristics: 0.04,
		model.CriterionServicesQuality:         0.08,
		model.CriterionLegalStatus:             0.04,
		model.CriterionDevelopmentPotential:    0.04,
	},
}

// DefaultWeights returns a copy of the built-in table for profile, or nil
// for an unknown profile.
func DefaultWeights(profile model.Profile) Weights {
	d, ok := defaultWeights[profile]
	if !ok {
		return nil
	}
	out := make(Weights, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Normalize scales w to sum to 1.0. It returns an empty map when the sum is
// not positive.
func Normalize(w Weights) Weights {
	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return Weights{}
	}
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v / sum
	}
	return out
}

// WeightRepository persists criterion weights per profile.
type WeightRepository interface {
	LoadCriteria(ctx context.Context, profile model.Profile) ([]model.ScoringCriterion, error)
	SaveCriteria(ctx context.Context, profile model.Profile, criteria []model.ScoringCriterion) error
}

// WeightManager loads and updates profile weights. It holds no cached state.
type WeightManager struct {
	repo WeightRepository
}

// NewWeightManager creates a WeightManager.
func NewWeightManager(repo WeightRepository) *WeightManager {
	return &WeightManager{repo: repo}
}

// Load returns the normalized active weights for profile, falling back to the
// built-in table when no active rows are stored.
func (m *WeightManager) Load(ctx context.Context, profile model.Profile) (Weights, error) {
	raw, err := m.Raw(ctx, profile)
	if err != nil {
		return nil, err
	}
	return Normalize(raw), nil
}

// Raw returns the unnormalized effective weights for profile.
func (m *WeightManager) Raw(ctx context.Context, profile model.Profile) (Weights, error) {
	rows, err := m.repo.LoadCriteria(ctx, profile)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: load weights for %s", profile)
	}

	w := make(Weights)
	for _, r := range rows {
		if r.Active && model.IsCriterion(r.Name) {
			w[r.Name] = r.Weight
		}
	}
	if len(w) == 0 {
		return DefaultWeights(profile), nil
	}
	return w, nil
}

// Update validates and persists weights for profile. Criteria not named in
// weights keep their stored rows.
func (m *WeightManager) Update(ctx context.Context, profile model.Profile, weights Weights) error {
	if !profile.Valid() {
		return eris.Errorf("scoring: unknown profile %q", profile)
	}
	if len(weights) == 0 {
		return eris.New("scoring: no weights given")
	}

	names := make([]string, 0, len(weights))
	for name, v := range weights {
		if !model.IsCriterion(name) {
			return eris.Errorf("scoring: unknown criterion %q", name)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Errorf("scoring: weight for %s must be a non-negative number", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]model.ScoringCriterion, 0, len(names))
	for _, name := range names {
		rows = append(rows, model.ScoringCriterion{
			Name:    name,
			Profile: profile,
			Weight:  weights[name],
			Active:  true,
		})
	}
	if err := m.repo.SaveCriteria(ctx, profile, rows); err != nil {
		return eris.Wrapf(err, "scoring: save weights for %s", profile)
	}
	return nil
}

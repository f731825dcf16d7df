package settings

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

const mixTolerance = 1e-3

// ValidateMix checks that both parts are non-negative and sum to 1.0.
func ValidateMix(m model.Mix) error {
	if m.Investment < 0 || m.Lifestyle < 0 {
		return eris.New("settings: mix values must be >= 0")
	}
	if math.Abs(m.Investment+m.Lifestyle-1) > mixTolerance {
		return eris.Errorf("settings: mix must sum to 1.0, got %.4f", m.Investment+m.Lifestyle)
	}
	return nil
}

// Mix manages the stored combined-score blend.
type Mix struct {
	repo     Repository
	fallback model.Mix
}

// NewMix creates a Mix manager. fallback is returned when nothing valid is
// stored; an invalid fallback is replaced by model.DefaultMix.
func NewMix(repo Repository, fallback model.Mix) *Mix {
	if ValidateMix(fallback) != nil {
		fallback = model.DefaultMix
	}
	return &Mix{repo: repo, fallback: fallback}
}

// Get returns the stored mix or the fallback.
func (m *Mix) Get(ctx context.Context) (model.Mix, error) {
	raw, err := m.repo.GetSetting(ctx, KeyMix)
	if errors.Is(err, store.ErrNotFound) {
		return m.fallback, nil
	}
	if err != nil {
		return m.fallback, eris.Wrap(err, "settings: read mix")
	}

	var mix model.Mix
	if err := json.Unmarshal(raw, &mix); err != nil {
		zap.L().Warn("settings: stored mix is not valid JSON, using fallback", zap.Error(err))
		return m.fallback, nil
	}
	if err := ValidateMix(mix); err != nil {
		zap.L().Warn("settings: stored mix is invalid, using fallback", zap.Error(err))
		return m.fallback, nil
	}
	return mix, nil
}

// Set validates and stores mix.
func (m *Mix) Set(ctx context.Context, mix model.Mix) error {
	if err := ValidateMix(mix); err != nil {
		return err
	}
	raw, err := json.Marshal(mix)
	if err != nil {
		return eris.Wrap(err, "settings: encode mix")
	}
	if err := m.repo.SetSetting(ctx, KeyMix, raw); err != nil {
		return eris.Wrap(err, "settings: write mix")
	}
	return nil
}

package scoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

// DefaultBatchSize is the rescore transaction size.
const DefaultBatchSize = 50

// ListingStore is the listing persistence the service needs.
type ListingStore interface {
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
	SaveListing(ctx context.Context, l *model.Listing) error
	SaveListingsBatch(ctx context.Context, listings []*model.Listing) error
	ListingIDs(ctx context.Context, f store.ListingFilter) ([]int64, error)
}

// MixSource supplies the investment/lifestyle blend.
type MixSource interface {
	Get(ctx context.Context) (model.Mix, error)
}

// Service scores listings with the current weights and mix.
type Service struct {
	calc     *Calculator
	weights  *WeightManager
	listings ListingStore
	mix      MixSource
	now      func() time.Time
}

// NewService creates a Service. mix may be nil, which uses model.DefaultMix.
func NewService(weights *WeightManager, listings ListingStore, mix MixSource) *Service {
	return &Service{
		calc:     NewCalculator(),
		weights:  weights,
		listings: listings,
		mix:      mix,
		now:      time.Now,
	}
}

type profileWeights struct {
	investment Weights
	lifestyle  Weights
	mix        model.Mix
}

func (s *Service) loadWeights(ctx context.Context) (*profileWeights, error) {
	inv, err := s.weights.Load(ctx, model.ProfileInvestment)
	if err != nil {
		return nil, err
	}
	life, err := s.weights.Load(ctx, model.ProfileLifestyle)
	if err != nil {
		return nil, err
	}

	mix := model.DefaultMix
	if s.mix != nil {
		m, err := s.mix.Get(ctx)
		if err != nil {
			zap.L().Warn("scoring: mix unavailable, using default", zap.Error(err))
		} else {
			mix = m
		}
	}
	return &profileWeights{investment: inv, lifestyle: life, mix: mix}, nil
}

// Calculate scores l in place with freshly loaded weights and returns the
// breakdown. It does not persist the listing.
func (s *Service) Calculate(ctx context.Context, l *model.Listing) (*model.ScoreBreakdown, error) {
	pw, err := s.loadWeights(ctx)
	if err != nil {
		return nil, err
	}
	return s.apply(l, pw), nil
}

// ScoreListing loads, scores and saves one listing.
func (s *Service) ScoreListing(ctx context.Context, id int64) (*model.ScoreBreakdown, error) {
	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: get listing %d", id)
	}
	b, err := s.Calculate(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := s.listings.SaveListing(ctx, l); err != nil {
		return nil, eris.Wrapf(err, "scoring: save listing %d", id)
	}
	return b, nil
}

func (s *Service) apply(l *model.Listing, pw *profileWeights) *model.ScoreBreakdown {
	individual := s.calc.Score(l)

	inv := WeightedScore(individual, pw.investment)
	life := WeightedScore(individual, pw.lifestyle)
	combined := clamp(inv*pw.mix.Investment + life*pw.mix.Lifestyle)

	b := &model.ScoreBreakdown{
		Individual:        make(map[string]*float64, len(individual)),
		Unavailable:       make(map[string]string),
		Investment:        inv,
		Lifestyle:         life,
		Combined:          combined,
		WeightsInvestment: UsedWeights(individual, pw.investment),
		WeightsLifestyle:  UsedWeights(individual, pw.lifestyle),
		Mix:               pw.mix,
		ScoredAt:          s.now().UTC(),
	}
	for name, r := range individual {
		b.Individual[name] = r.Ptr()
		if !r.Available() {
			b.Unavailable[name] = r.Reason()
		}
	}

	l.ScoreInvestment = model.Float(inv)
	l.ScoreLifestyle = model.Float(life)
	l.ScoreTotal = model.Float(combined)
	l.Environment.Scoring = b
	return b
}

// WeightedScore is the weighted mean over criteria that have both a positive
// weight and an available score. Missing criteria drop out of the
// denominator. It returns 0 when nothing matches.
func WeightedScore(scores map[string]model.ScoreResult, weights Weights) float64 {
	var sum, used float64
	for name, w := range weights {
		if w <= 0 {
			continue
		}
		v, ok := scores[name].Value()
		if !ok {
			continue
		}
		sum += v * w
		used += w
	}
	if used == 0 {
		return 0
	}
	return clamp(sum / used)
}

// UsedWeights returns the weights WeightedScore actually applies: criteria
// with a positive weight and an available score, rescaled to sum to 1. It is
// empty when nothing matches.
func UsedWeights(scores map[string]model.ScoreResult, weights Weights) Weights {
	out := make(Weights)
	var used float64
	for name, w := range weights {
		if w > 0 && scores[name].Available() {
			out[name] = w
			used += w
		}
	}
	for name := range out {
		out[name] /= used
	}
	return out
}

// RescoreReport summarizes a RescoreAll pass.
type RescoreReport struct {
	Total         int `json:"total"`
	Scored        int `json:"scored"`
	FailedBatches int `json:"failed_batches"`
}

// RescoreAll rescores every listing in batches of batchSize, each saved in one
// transaction. A failed batch is logged and skipped.
func (s *Service) RescoreAll(ctx context.Context, batchSize int) (*RescoreReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	log := zap.L().With(zap.String("component", "rescore"))

	pw, err := s.loadWeights(ctx)
	if err != nil {
		return nil, err
	}

	report := &RescoreReport{}
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ids, err := s.listings.ListingIDs(ctx, store.ListingFilter{AfterID: after, Limit: batchSize})
		if err != nil {
			return report, eris.Wrap(err, "scoring: list listings")
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]
		report.Total += len(ids)

		batch := make([]*model.Listing, 0, len(ids))
		loadFailed := false
		for _, id := range ids {
			l, err := s.listings.GetListing(ctx, id)
			if err != nil {
				log.Error("scoring: load listing failed", zap.Int64("listing_id", id), zap.Error(err))
				loadFailed = true
				break
			}
			s.apply(l, pw)
			batch = append(batch, l)
		}
		if loadFailed {
			report.FailedBatches++
			continue
		}

		if err := s.listings.SaveListingsBatch(ctx, batch); err != nil {
			log.Error("scoring: batch save failed",
				zap.Int64("first_id", ids[0]),
				zap.Int64("last_id", after),
				zap.Error(err),
			)
			report.FailedBatches++
			continue
		}
		report.Scored += len(batch)
		log.Debug("scoring: batch committed", zap.Int("size", len(batch)), zap.Int64("last_id", after))
	}

	log.Info("scoring: rescore complete",
		zap.Int("total", report.Total),
		zap.Int("scored", report.Scored),
		zap.Int("failed_batches", report.FailedBatches),
	)
	return report, nil
}

// Package enrichment runs the per-listing enrichment phases and records
// each run's outcome.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geo"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geocoding"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/traveltime"
)

// ErrEnrichmentIncomplete is returned when no geocoding attempt produced
// coordinates for the listing.
var ErrEnrichmentIncomplete = eris.New("enrichment: listing could not be geocoded")

var (
	errNoLocation = eris.New("enrichment: listing has no coordinates")
	errSkipped    = eris.New("enrichment: phase skipped")
)

// Store is the persistence the orchestrator needs.
type Store interface {
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
	SaveListing(ctx context.Context, l *model.Listing) error
	ListingIDs(ctx context.Context, filter store.ListingFilter) ([]int64, error)
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
}

// Resolver turns a listing's address text into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, l *model.Listing) (*geocoding.Resolution, error)
}

// TravelCalculator fills the nearest-destination travel summary.
type TravelCalculator interface {
	Compute(ctx context.Context, origin geo.Point, cities model.CityPair) (*traveltime.Summary, error)
}

// CitySource supplies the configured reference cities.
type CitySource interface {
	Get(ctx context.Context) (model.CityPair, error)
}

// Scorer computes and assigns scores on a listing without saving it.
type Scorer interface {
	Calculate(ctx context.Context, l *model.Listing) (*model.ScoreBreakdown, error)
}

// Enricher is one provider-backed phase.
type Enricher interface {
	Enrich(ctx context.Context, l *model.Listing) (map[string]any, error)
}

// Orchestrator runs every phase for a listing.
type Orchestrator struct {
	store    Store
	resolver Resolver
	places   Enricher
	maps     Enricher
	osm      Enricher
	travel   TravelCalculator
	cities   CitySource
	scorer   Scorer
	interval time.Duration
}

// Deps groups the orchestrator's collaborators. Places, Maps, OSM and
// Travel may be nil; those phases are then recorded as skipped.
type Deps struct {
	Store    Store
	Resolver Resolver
	Places   Enricher
	Maps     Enricher
	OSM      Enricher
	Travel   TravelCalculator
	Cities   CitySource
	Scorer   Scorer
	// Interval is the pause between listings in EnrichAll.
	Interval time.Duration
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		store:    d.Store,
		resolver: d.Resolver,
		places:   d.Places,
		maps:     d.Maps,
		osm:      d.OSM,
		travel:   d.Travel,
		cities:   d.Cities,
		scorer:   d.Scorer,
		interval: d.Interval,
	}
}

// Enrich runs all phases for one listing and returns the run record. The
// listing is geocoded only when it has no coordinates, and it is saved after
// every phase that ran. Geocoding failure ends the run with
// ErrEnrichmentIncomplete; other phase failures are recorded and the run
// continues through scoring.
func (o *Orchestrator) Enrich(ctx context.Context, id int64) (*model.Run, error) {
	log := zap.L().With(zap.String("component", "enrichment"), zap.Int64("listing_id", id))

	l, err := o.store.GetListing(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "enrichment: load listing %d", id)
	}

	run := &model.Run{
		ID:        uuid.NewString(),
		ListingID: id,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		log.Warn("enrichment: failed to create run", zap.Error(err))
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) *model.PhaseResult {
		start := time.Now()
		meta, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		pr := model.PhaseResult{Name: name, Duration: duration, Metadata: meta}
		switch {
		case errors.Is(fnErr, errSkipped):
			pr.Status = model.PhaseStatusSkipped
			log.Debug("enrichment: phase skipped", zap.String("phase", name))
		case fnErr != nil:
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Warn("enrichment: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		default:
			pr.Status = model.PhaseStatusComplete
			log.Info("enrichment: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if pr.Status != model.PhaseStatusSkipped {
			if saveErr := o.store.SaveListing(ctx, l); saveErr != nil {
				log.Error("enrichment: failed to save listing", zap.String("phase", name), zap.Error(saveErr))
				if pr.Error == "" {
					pr.Status = model.PhaseStatusFailed
					pr.Error = saveErr.Error()
				}
			}
		}

		run.Phases = append(run.Phases, pr)
		return &run.Phases[len(run.Phases)-1]
	}

	finish := func(runErr error) {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Status = model.RunStatusComplete
		if runErr != nil {
			run.Status = model.RunStatusFailed
			run.Error = runErr.Error()
		}
		// The audit write must land even if the caller's context is done.
		if err := o.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("enrichment: failed to finish run", zap.Error(err))
		}
	}

	// Phase 1: geocode
	gp := trackPhase(model.PhaseGeocode, func() (map[string]any, error) {
		return o.geocode(ctx, l)
	})
	if gp.Status == model.PhaseStatusFailed {
		runErr := ErrEnrichmentIncomplete
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = eris.Wrap(ctxErr, "enrichment: geocode")
		}
		finish(runErr)
		return run, runErr
	}

	// Phases 2-4: provider lookups
	trackPhase(model.PhasePlaces, func() (map[string]any, error) {
		return enrichWith(ctx, o.places, l)
	})
	trackPhase(model.PhaseMaps, func() (map[string]any, error) {
		return enrichWith(ctx, o.maps, l)
	})
	trackPhase(model.PhaseOSM, func() (map[string]any, error) {
		return enrichWith(ctx, o.osm, l)
	})

	// Phase 5: environment
	trackPhase(model.PhaseEnvironment, func() (map[string]any, error) {
		return AnalyzeEnvironment(l), nil
	})

	// Phase 6: travel time
	trackPhase(model.PhaseTravelTime, func() (map[string]any, error) {
		return o.travelTime(ctx, l)
	})

	// Phase 7: score
	trackPhase(model.PhaseScore, func() (map[string]any, error) {
		if o.scorer == nil {
			return nil, errSkipped
		}
		b, err := o.scorer.Calculate(ctx, l)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"combined":    b.Combined,
			"investment":  b.Investment,
			"lifestyle":   b.Lifestyle,
			"unavailable": len(b.Unavailable),
		}, nil
	})

	finish(nil)
	return run, nil
}

func (o *Orchestrator) geocode(ctx context.Context, l *model.Listing) (map[string]any, error) {
	if l.HasLocation() {
		return map[string]any{"reason": "listing already has coordinates", "accuracy": string(l.Accuracy)}, errSkipped
	}
	res, err := o.resolver.Resolve(ctx, l)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return map[string]any{"municipality": l.Municipality}, ErrEnrichmentIncomplete
	}
	l.SetLocation(res.Lat, res.Lon, res.Accuracy)
	return map[string]any{
		"query":    res.Query,
		"accuracy": string(res.Accuracy),
	}, nil
}

func enrichWith(ctx context.Context, e Enricher, l *model.Listing) (map[string]any, error) {
	if e == nil {
		return nil, errSkipped
	}
	return e.Enrich(ctx, l)
}

func (o *Orchestrator) travelTime(ctx context.Context, l *model.Listing) (map[string]any, error) {
	if o.travel == nil {
		return nil, errSkipped
	}
	if !l.HasLocation() {
		return nil, errNoLocation
	}

	cities := model.DefaultCityPair
	if o.cities != nil {
		c, err := o.cities.Get(ctx)
		if err != nil {
			zap.L().Warn("enrichment: reference cities unavailable, using defaults", zap.Error(err))
		} else {
			cities = c
		}
	}

	summary, err := o.travel.Compute(ctx, geo.Point{Lat: *l.Lat, Lon: *l.Lon}, cities)
	if err != nil {
		return nil, err
	}
	traveltime.Apply(l, summary)
	return map[string]any{
		"strategy": summary.Strategy,
		"city_a":   cities.A.Name,
		"city_b":   cities.B.Name,
	}, nil
}

// BatchReport counts the outcomes of EnrichAll.
type BatchReport struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// EnrichAll enriches every listing matching filter, one at a time, pausing
// between listings. It stops early only when ctx is done.
func (o *Orchestrator) EnrichAll(ctx context.Context, filter store.ListingFilter) (*BatchReport, error) {
	ids, err := o.store.ListingIDs(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: list listings")
	}

	report := &BatchReport{Total: len(ids)}
	o.prefetch(ctx, ids)

	var limiter *rate.Limiter
	if o.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.interval), 1)
	}

	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report, eris.Wrap(err, "enrichment: wait")
			}
		}
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "enrichment: batch canceled")
		}

		if _, err := o.Enrich(ctx, id); err != nil {
			report.Failed++
			zap.L().Warn("enrichment: listing failed", zap.Int64("listing_id", id), zap.Error(err))
			continue
		}
		report.Succeeded++
	}

	zap.L().Info("enrichment: batch complete",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Prefetcher warms geocoding for many listings ahead of the per-listing loop.
type Prefetcher interface {
	Prefetch(ctx context.Context, ls []*model.Listing) int
}

func (o *Orchestrator) prefetch(ctx context.Context, ids []int64) {
	p, ok := o.resolver.(Prefetcher)
	if !ok || len(ids) < 2 {
		return
	}
	ls := make([]*model.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := o.store.GetListing(ctx, id)
		if err != nil {
			continue
		}
		if !l.HasLocation() {
			ls = append(ls, l)
		}
	}
	if len(ls) > 0 {
		p.Prefetch(ctx, ls)
	}
}

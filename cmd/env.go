package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/enrichment"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geocoding"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/settings"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/traveltime"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/geocode"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/osm"
)

// appEnv holds the store and services shared by the commands.
type appEnv struct {
	Store        store.Store
	Weights      *scoring.WeightManager
	Scoring      *scoring.Service
	Cities       *settings.Cities
	Mix          *settings.Mix
	Orchestrator *enrichment.Orchestrator // nil unless built with providers
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "landscore.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, and
// builds the scoring services. withProviders also builds the enrichment
// orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, withProviders bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	mixFallback := model.Mix{Investment: cfg.Scoring.InvestmentMix, Lifestyle: cfg.Scoring.LifestyleMix}
	env := &appEnv{
		Store:   st,
		Weights: scoring.NewWeightManager(st),
		Cities:  settings.NewCities(st),
		Mix:     settings.NewMix(st, mixFallback),
	}
	env.Scoring = scoring.NewService(env.Weights, st, env.Mix)

	if withProviders {
		env.Orchestrator = buildOrchestrator(env)
	}
	return env, nil
}

func buildOrchestrator(env *appEnv) *enrichment.Orchestrator {
	guard := resilience.NewGuard(
		resilience.PolicyFromConfig(cfg.Resilience.MaxAttempts, cfg.Resilience.InitialBackoffMs, cfg.Resilience.MaxBackoffMs),
		cfg.Resilience.FailureThreshold,
		time.Duration(cfg.Resilience.ResetTimeoutSecs)*time.Second,
	)
	timeout := cfg.Enrichment.HTTPTimeout()

	providers := []geocode.Provider{
		geocode.NewGoogleProvider(cfg.Google.APIKey,
			geocode.WithRateLimit(cfg.Google.GeocodeRateLimit),
			geocode.WithTimeout(timeout),
		),
		geocode.NewNominatimProvider(cfg.Nominatim.UserAgent,
			geocode.WithBaseURL(cfg.Nominatim.BaseURL),
			geocode.WithRateLimit(cfg.Nominatim.RateLimit),
			geocode.WithTimeout(timeout),
		),
	}
	resolver := geocoding.NewResolver(geocode.NewCascade(providers,
		geocode.WithRegion("es"),
		geocode.WithBatchConcurrency(cfg.Enrichment.GeocodeConcurrency),
	), env.Store)

	d := enrichment.Deps{
		Store:    env.Store,
		Resolver: resolver,
		Cities:   env.Cities,
		Scorer:   env.Scoring,
		Interval: time.Duration(cfg.Enrichment.ListingIntervalMs) * time.Millisecond,
	}

	httpClient := &http.Client{Timeout: timeout}
	places := googleClient(cfg.Google.PlacesAPIKey(), int(cfg.Google.PlacesRateLimit), httpClient)
	maps := googleClient(cfg.Google.MapsAPIKey(), 0, httpClient)

	d.Places = enrichment.NewPlacesEnricher(places, guard)
	d.Travel = traveltime.NewCalculator(maps, guard)
	if maps != nil {
		d.Maps = enrichment.NewMapsEnricher(maps, guard)
	}
	if cfg.OSM.OverpassURL != "" {
		overpass := osm.NewClient(
			osm.WithEndpoint(cfg.OSM.OverpassURL),
			osm.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.OSM.TimeoutSecs) * time.Second}),
		)
		d.OSM = enrichment.NewOSMEnricher(overpass, guard)
	}

	return enrichment.New(d)
}

// googleClient returns nil when no key is configured, so callers fall back
// to estimates.
func googleClient(key string, rps int, hc *http.Client) google.Client {
	if key == "" {
		return nil
	}
	opts := []google.Option{google.WithHTTPClient(hc)}
	if rps > 0 {
		opts = append(opts, google.WithRateLimit(rps))
	}
	c, err := google.NewClient(key, opts...)
	if err != nil {
		zap.L().Warn("google client unavailable, using estimates", zap.Error(err))
		return nil
	}
	return c
}

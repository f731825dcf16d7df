package enrichment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geocoding"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/traveltime"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/geocode"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/google/mocks"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/osm"
)

type memStore struct {
	mu       sync.Mutex
	listings map[int64]*model.Listing
	runs     map[string]*model.Run
	saves    int
	finished int
}

func newMemStore(ls ...*model.Listing) *memStore {
	s := &memStore{listings: make(map[int64]*model.Listing), runs: make(map[string]*model.Run)}
	for _, l := range ls {
		s.listings[l.ID] = l
	}
	return s
}

func (s *memStore) GetListing(_ context.Context, id int64) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "listing %d", id)
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) SaveListing(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.listings[l.ID] = &cp
	s.saves++
	return nil
}

func (s *memStore) ListingIDs(_ context.Context, _ store.ListingFilter) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.listings))
	for id := range s.listings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) CreateRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) FinishRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	s.finished++
	return nil
}

// staticGeocoder answers every query with the same point, or fails the test
// when no point is configured.
type staticGeocoder struct {
	t      *testing.T
	result *geocode.Result
}

func (g staticGeocoder) Geocode(_ context.Context, req geocode.Request) (*geocode.Result, error) {
	if g.result == nil {
		g.t.Errorf("unexpected geocode query %q", req.Address)
		return nil, errors.New("unexpected query")
	}
	return g.result, nil
}

// batchingGeocoder records the queries sent through its batch path.
type batchingGeocoder struct {
	staticGeocoder
	mu      sync.Mutex
	batched []string
}

func (g *batchingGeocoder) BatchGeocode(ctx context.Context, reqs []geocode.Request) []geocode.Result {
	out := make([]geocode.Result, len(reqs))
	for i, req := range reqs {
		g.mu.Lock()
		g.batched = append(g.batched, req.Address)
		g.mu.Unlock()
		r, _ := g.Geocode(ctx, req)
		out[i] = *r
	}
	return out
}

type stubAmenities struct{ elems []osm.Element }

func (s stubAmenities) AmenitiesNear(context.Context, float64, float64, int, string) ([]osm.Element, error) {
	return s.elems, nil
}

type stubScorer struct{ err error }

func (s stubScorer) Calculate(_ context.Context, l *model.Listing) (*model.ScoreBreakdown, error) {
	if s.err != nil {
		return nil, s.err
	}
	b := &model.ScoreBreakdown{Investment: 60, Lifestyle: 70, Combined: 66.8}
	l.ScoreTotal = model.Float(b.Combined)
	l.ScoreInvestment = model.Float(b.Investment)
	l.ScoreLifestyle = model.Float(b.Lifestyle)
	return b, nil
}

// failingCities returns a zero pair alongside its error.
type failingCities struct{}

func (failingCities) Get(context.Context) (model.CityPair, error) {
	return model.CityPair{}, errors.New("settings table locked")
}

func noriegaResult() *geocode.Result {
	return &geocode.Result{Lat: 43.3636546, Lon: -4.5727598, FormattedAddress: "Noriega, Ribadedeva", Matched: true}
}

func phaseNames(run *model.Run) []string {
	names := make([]string, len(run.Phases))
	for i, p := range run.Phases {
		names[i] = p.Name
	}
	return names
}

func TestEnrich_AllPhases(t *testing.T) {
	input := &model.Listing{
		ID:           7,
		Title:        "Land in Noriega",
		Municipality: "Noriega",
		Description:  "Finca con vistas a la montaña, agua y luz",
	}
	st := newMemStore(input)

	maps := mocks.NewMockClient(t)
	maps.On("DistanceMatrix", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("OVER_QUERY_LIMIT")).Once()

	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t, result: noriegaResult()}, nil),
		Places:   NewPlacesEnricher(nil, nil),
		Maps:     NewMapsEnricher(maps, nil),
		OSM:      NewOSMEnricher(stubAmenities{elems: []osm.Element{{ID: 1, Tags: map[string]string{"amenity": "cafe"}}}}, nil),
		Travel:   traveltime.NewCalculator(nil, nil),
		Scorer:   stubScorer{},
	})

	run, err := o.Enrich(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.NotEmpty(t, run.ID)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, []string{
		model.PhaseGeocode, model.PhasePlaces, model.PhaseMaps, model.PhaseOSM,
		model.PhaseEnvironment, model.PhaseTravelTime, model.PhaseScore,
	}, phaseNames(run))

	assert.Equal(t, model.PhaseStatusFailed, run.Phase(model.PhaseMaps).Status)
	assert.Contains(t, run.Phase(model.PhaseMaps).Error, "OVER_QUERY_LIMIT")
	assert.Equal(t, model.PhaseStatusComplete, run.Phase(model.PhaseScore).Status)
	assert.Equal(t, "per_destination", run.Phase(model.PhaseTravelTime).Metadata["strategy"])

	saved, err := st.GetListing(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, saved.HasLocation())
	assert.Equal(t, model.AccuracyApproximate, saved.Accuracy)
	assert.True(t, saved.Amenities.Estimated)
	assert.Equal(t, 1, saved.Amenities.OSMCounts["cafe"])
	assert.True(t, *saved.Environment.MountainView)
	require.NotNil(t, saved.Travel.TimeAirport)
	require.NotNil(t, saved.ScoreTotal)
	assert.InDelta(t, 66.8, *saved.ScoreTotal, 1e-9)

	assert.Equal(t, 7, st.saves, "listing is saved after every phase")
	assert.Equal(t, 1, st.finished)
	assert.Equal(t, model.RunStatusComplete, st.runs[run.ID].Status)
}

func TestEnrich_BadMunicipalityIsIncomplete(t *testing.T) {
	st := newMemStore(&model.Listing{ID: 3, Title: "Land in And", Municipality: "And"})
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t}, nil),
		Scorer:   stubScorer{},
	})

	run, err := o.Enrich(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnrichmentIncomplete))
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, []string{model.PhaseGeocode}, phaseNames(run))

	saved, _ := st.GetListing(context.Background(), 3)
	assert.Nil(t, saved.Lat)
	assert.Nil(t, saved.Lon)
	assert.Nil(t, saved.ScoreTotal)
	assert.Equal(t, model.RunStatusFailed, st.runs[run.ID].Status)
}

func TestEnrich_NotFound(t *testing.T) {
	o := New(Deps{Store: newMemStore(), Resolver: geocoding.NewResolver(staticGeocoder{t: t}, nil)})

	run, err := o.Enrich(context.Background(), 99)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestEnrich_MissingProvidersAreSkipped(t *testing.T) {
	st := newMemStore(&model.Listing{ID: 1, Title: "Parcela en Gijón", Municipality: "Gijón"})
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t, result: noriegaResult()}, nil),
	})

	run, err := o.Enrich(context.Background(), 1)
	require.NoError(t, err)
	for _, name := range []string{model.PhasePlaces, model.PhaseMaps, model.PhaseOSM, model.PhaseTravelTime, model.PhaseScore} {
		assert.Equal(t, model.PhaseStatusSkipped, run.Phase(name).Status, name)
	}
	assert.Equal(t, model.PhaseStatusComplete, run.Phase(model.PhaseEnvironment).Status)
	assert.Equal(t, 2, st.saves)
}

func TestEnrich_ExistingCoordinatesSkipGeocode(t *testing.T) {
	l := &model.Listing{ID: 5, Title: "Finca en Llanes", Municipality: "Llanes"}
	l.SetLocation(43.4199, -4.7549, model.AccuracyPrecise)
	st := newMemStore(l)
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t}, nil),
		Places:   NewPlacesEnricher(nil, nil),
	})

	run, err := o.Enrich(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusSkipped, run.Phase(model.PhaseGeocode).Status)
	assert.Equal(t, model.PhaseStatusComplete, run.Phase(model.PhasePlaces).Status)

	saved, _ := st.GetListing(context.Background(), 5)
	assert.Equal(t, model.AccuracyPrecise, saved.Accuracy)
	assert.InDelta(t, 43.4199, *saved.Lat, 1e-9)
	assert.True(t, saved.Amenities.Estimated)
}

func TestEnrich_ScoreFailureIsRecorded(t *testing.T) {
	st := newMemStore(&model.Listing{ID: 1, Title: "Parcela en Gijón", Municipality: "Gijón"})
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t, result: noriegaResult()}, nil),
		Scorer:   stubScorer{err: errors.New("weights unavailable")},
	})

	run, err := o.Enrich(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusFailed, run.Phase(model.PhaseScore).Status)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestEnrichAll(t *testing.T) {
	st := newMemStore(
		&model.Listing{ID: 1, Title: "Parcela en Gijón", Municipality: "Gijón"},
		&model.Listing{ID: 2, Title: "Land in And", Municipality: "And"},
		&model.Listing{ID: 3, Title: "Finca en Llanes", Municipality: "Llanes"},
	)
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t, result: noriegaResult()}, nil),
		Scorer:   stubScorer{},
	})

	report, err := o.EnrichAll(context.Background(), store.ListingFilter{OnlyPending: true})
	require.NoError(t, err)
	assert.Equal(t, &BatchReport{Total: 3, Succeeded: 2, Failed: 1}, report)
	assert.Len(t, st.runs, 3)
}

func TestEnrichAll_Canceled(t *testing.T) {
	st := newMemStore(&model.Listing{ID: 1, Municipality: "Gijón"})
	o := New(Deps{Store: st, Resolver: geocoding.NewResolver(staticGeocoder{t: t}, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := o.EnrichAll(ctx, store.ListingFilter{})
	require.Error(t, err)
	assert.Equal(t, 0, report.Succeeded+report.Failed)
}

func TestEnrichAll_PrefetchesPendingGeocodes(t *testing.T) {
	located := &model.Listing{ID: 3, Title: "Finca en Llanes", Municipality: "Llanes"}
	located.SetLocation(43.4199, -4.7549, model.AccuracyPrecise)
	st := newMemStore(
		&model.Listing{ID: 1, Title: "Parcela en Pravia", Municipality: "Pravia"},
		&model.Listing{ID: 2, Title: "Terreno en Pravia"},
		located,
	)
	g := &batchingGeocoder{staticGeocoder: staticGeocoder{t: t, result: noriegaResult()}}
	o := New(Deps{Store: st, Resolver: geocoding.NewResolver(g, nil)})

	report, err := o.EnrichAll(context.Background(), store.ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, []string{"Pravia, Spain"}, g.batched)
}

func TestEnrich_CitySourceErrorUsesDefaultPair(t *testing.T) {
	l := &model.Listing{ID: 4, Title: "Finca en Llanes", Municipality: "Llanes"}
	l.SetLocation(43.4199, -4.7549, model.AccuracyPrecise)
	st := newMemStore(l)
	o := New(Deps{
		Store:    st,
		Resolver: geocoding.NewResolver(staticGeocoder{t: t}, nil),
		Travel:   traveltime.NewCalculator(nil, nil),
		Cities:   failingCities{},
	})

	run, err := o.Enrich(context.Background(), 4)
	require.NoError(t, err)
	phase := run.Phase(model.PhaseTravelTime)
	assert.Equal(t, model.PhaseStatusComplete, phase.Status)
	assert.Equal(t, model.DefaultCityPair.A.Name, phase.Metadata["city_a"])
	assert.Equal(t, model.DefaultCityPair.B.Name, phase.Metadata["city_b"])

	saved, _ := st.GetListing(context.Background(), 4)
	assert.Equal(t, model.DefaultCityPair.A.Name, saved.Travel.CityA)
}

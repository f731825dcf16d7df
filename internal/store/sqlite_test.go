package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleListing(sourceID string) *model.Listing {
	return &model.Listing{
		SourceID:     sourceID,
		Title:        "Terreno en Llanes",
		Description:  "Finca con vistas al mar, agua y luz",
		Municipality: "Llanes",
		Price:        model.Float(120000),
		Area:         model.Float(2500),
		LandType:     model.LandTypeBuildable,
	}
}

func TestSQLiteStore_CreateAndGetListing(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("idealista-1")
	l.SetLocation(43.42, -4.75, model.AccuracyPrecise)
	l.Infrastructure.Water = model.Bool(true)
	l.Amenities.Supermarket = &model.Proximity{DistanceM: 800, TravelMinutes: 2}
	l.Amenities.OSMCounts = map[string]int{"cafe": 3}
	l.Transport.Routes = map[string]model.RouteLeg{"madrid": {DistanceM: 450000, DurationS: 16000}}
	l.Environment.SeaView = model.Bool(true)
	l.Travel.TimeBeach = model.Int(12)
	l.Travel.NearestBeach = "Gulpiyuri"
	require.NoError(t, s.CreateListing(ctx, l))
	assert.NotZero(t, l.ID)

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "idealista-1", got.SourceID)
	assert.Equal(t, "Llanes", got.Municipality)
	require.NotNil(t, got.Price)
	assert.InDelta(t, 120000, *got.Price, 0.01)
	require.True(t, got.HasLocation())
	assert.InDelta(t, 43.42, *got.Lat, 1e-9)
	assert.Equal(t, model.AccuracyPrecise, got.Accuracy)
	require.NotNil(t, got.Infrastructure.Water)
	assert.True(t, *got.Infrastructure.Water)
	assert.Nil(t, got.Infrastructure.Gas)
	require.NotNil(t, got.Amenities.Supermarket)
	assert.Equal(t, 2, got.Amenities.Supermarket.TravelMinutes)
	assert.Equal(t, 3, got.Amenities.OSMCounts["cafe"])
	assert.Equal(t, 16000, got.Transport.Routes["madrid"].DurationS)
	require.NotNil(t, got.Travel.TimeBeach)
	assert.Equal(t, 12, *got.Travel.TimeBeach)
	assert.Equal(t, "Gulpiyuri", got.Travel.NearestBeach)
	assert.Nil(t, got.ScoreTotal)
}

func TestSQLiteStore_GetListing_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.GetListing(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_DuplicateSourceID(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateListing(ctx, sampleListing("dup")))
	assert.Error(t, s.CreateListing(ctx, sampleListing("dup")))
}

func TestSQLiteStore_SaveListing(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("save-1")
	require.NoError(t, s.CreateListing(ctx, l))

	l.ScoreTotal = model.Float(71.5)
	l.Environment.Scoring = &model.ScoreBreakdown{
		Individual: map[string]*float64{model.CriterionLegalStatus: model.Float(80)},
		Combined:   71.5,
		ScoredAt:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveListing(ctx, l))

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScoreTotal)
	assert.InDelta(t, 71.5, *got.ScoreTotal, 1e-9)
	require.NotNil(t, got.Environment.Scoring)
	assert.InDelta(t, 80, *got.Environment.Scoring.Individual[model.CriterionLegalStatus], 1e-9)
}

func TestSQLiteStore_SaveListing_Missing(t *testing.T) {
	s := newTestSQLiteStore(t)
	l := sampleListing("ghost")
	l.ID = 42
	err := s.SaveListing(context.Background(), l)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SaveListingsBatch_RollsBack(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleListing("batch-a")
	require.NoError(t, s.CreateListing(ctx, a))

	a.ScoreTotal = model.Float(50)
	ghost := sampleListing("batch-ghost")
	ghost.ID = 9999

	require.Error(t, s.SaveListingsBatch(ctx, []*model.Listing{a, ghost}))

	got, err := s.GetListing(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ScoreTotal, "failed batch must not commit partial updates")

	require.NoError(t, s.SaveListingsBatch(ctx, []*model.Listing{a}))
	got, err = s.GetListing(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScoreTotal)
}

func TestSQLiteStore_ListingIDs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	scored := sampleListing("ids-1")
	scored.SetLocation(43, -5, model.AccuracyApproximate)
	scored.ScoreTotal = model.Float(60)
	require.NoError(t, s.CreateListing(ctx, scored))

	pending := sampleListing("ids-2")
	require.NoError(t, s.CreateListing(ctx, pending))

	noCoords := sampleListing("ids-3")
	noCoords.ScoreTotal = model.Float(40)
	require.NoError(t, s.CreateListing(ctx, noCoords))

	all, err := s.ListingIDs(ctx, ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{scored.ID, pending.ID, noCoords.ID}, all)

	onlyPending, err := s.ListingIDs(ctx, ListingFilter{OnlyPending: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{pending.ID, noCoords.ID}, onlyPending)

	page, err := s.ListingIDs(ctx, ListingFilter{AfterID: scored.ID, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{pending.ID}, page)
}

func TestSQLiteStore_CoordinatesClaimed(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleListing("coords-a")
	a.SetLocation(43.4222, -4.7558, model.AccuracyPrecise)
	require.NoError(t, s.CreateListing(ctx, a))

	claimed, err := s.CoordinatesClaimed(ctx, 43.4222, -4.7558, 0)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.CoordinatesClaimed(ctx, 43.4222, -4.7558, a.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "own coordinates are excluded")

	claimed, err = s.CoordinatesClaimed(ctx, 43.4223, -4.7558, 0)
	require.NoError(t, err)
	assert.False(t, claimed, "match is exact")
}

func TestSQLiteStore_Criteria(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	none, err := s.LoadCriteria(ctx, model.ProfileInvestment)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.SaveCriteria(ctx, model.ProfileInvestment, []model.ScoringCriterion{
		{Name: model.CriterionInvestmentYield, Weight: 0.5, Active: true},
		{Name: model.CriterionLegalStatus, Weight: 0.5, Active: false},
	}))
	require.NoError(t, s.SaveCriteria(ctx, model.ProfileInvestment, []model.ScoringCriterion{
		{Name: model.CriterionInvestmentYield, Weight: 0.7, Active: true},
	}))

	got, err := s.LoadCriteria(ctx, model.ProfileInvestment)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.CriterionInvestmentYield, got[0].Name)
	assert.InDelta(t, 0.7, got[0].Weight, 1e-9)
	assert.True(t, got[0].Active)
	assert.Equal(t, model.ProfileInvestment, got[0].Profile)
	assert.False(t, got[1].Active)

	other, err := s.LoadCriteria(ctx, model.ProfileLifestyle)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_Settings(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, "city_a")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.SetSetting(ctx, "city_a", []byte(`{"name":"Oviedo"}`)))
	require.NoError(t, s.SetSetting(ctx, "city_a", []byte(`{"name":"Avilés"}`)))

	v, err := s.GetSetting(ctx, "city_a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Avilés"}`, string(v))
}

func TestSQLiteStore_Runs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("run-1")
	require.NoError(t, s.CreateListing(ctx, l))

	run := &model.Run{
		ID:        "run-abc",
		ListingID: l.ID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateRun(ctx, run))

	run.Phases = []model.PhaseResult{
		{Name: model.PhaseGeocode, Status: model.PhaseStatusComplete, Duration: 12},
		{Name: model.PhasePlaces, Status: model.PhaseStatusFailed, Error: "boom"},
	}
	run.Status = model.RunStatusComplete
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, "run-abc")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.Len(t, got.Phases, 2)
	assert.Equal(t, "boom", got.Phases[1].Error)
	require.NotNil(t, got.FinishedAt)

	_, err = s.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

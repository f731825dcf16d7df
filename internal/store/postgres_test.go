package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var listingColumnNames = []string{
	"id", "source_id", "title", "url", "description", "municipality", "price", "area",
	"land_type", "legal_status", "location_lat", "location_lon", "location_accuracy",
	"infrastructure_basic", "infrastructure_extended", "transport", "environment",
	"services_quality", "travel", "extra", "score_total", "score_investment", "score_lifestyle",
	"created_at", "updated_at",
}

func TestPostgresStore_GetListing(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	price := 90000.0
	lat, lon := 43.5322, -5.6611

	mock.ExpectQuery(`SELECT id, source_id, title`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(listingColumnNames).AddRow(
			int64(7), "src-7", "Parcela en Gijón", "", "", "Gijón", &price, (*float64)(nil),
			"developed", "", &lat, &lon, "approximate",
			[]byte(`{"water":true}`), []byte(nil), []byte(`{}`), []byte(`{"orientation":"sur"}`),
			[]byte(nil), []byte(`{"travel_time_city_a":25}`), []byte(nil), (*float64)(nil), (*float64)(nil), (*float64)(nil),
			now, now,
		))

	l, err := s.GetListing(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "src-7", l.SourceID)
	assert.Equal(t, model.AccuracyApproximate, l.Accuracy)
	require.NotNil(t, l.Price)
	assert.Nil(t, l.Area)
	require.NotNil(t, l.Infrastructure.Water)
	assert.Equal(t, "sur", l.Environment.Orientation)
	require.NotNil(t, l.Travel.TimeCityA)
	assert.Equal(t, 25, *l.Travel.TimeCityA)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetListing_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source_id, title`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetListing(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateListing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO listings .* RETURNING id`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	l := &model.Listing{SourceID: "new", Title: "t"}
	require.NoError(t, s.CreateListing(context.Background(), l))
	assert.Equal(t, int64(11), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveListingsBatch_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE listings SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE listings SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.SaveListingsBatch(context.Background(), []*model.Listing{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveListingsBatch_RollbackOnMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE listings SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE listings SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.SaveListingsBatch(context.Background(), []*model.Listing{{ID: 1}, {ID: 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListingIDs_Pending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM listings WHERE id > \$1 AND \(score_total IS NULL`).
		WithArgs(int64(0), 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(5)))

	ids, err := s.ListingIDs(context.Background(), ListingFilter{OnlyPending: true, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CoordinatesClaimed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(43.1, -5.2, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	claimed, err := s.CoordinatesClaimed(context.Background(), 43.1, -5.2, 9)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCriteria_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "scoring_criteria" .* ON CONFLICT \("profile", "criteria_name"\) DO UPDATE`).
		WithArgs("lifestyle", model.CriterionEnvironment, 0.3, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveCriteria(context.Background(), model.ProfileLifestyle, []model.ScoringCriterion{
		{Name: model.CriterionEnvironment, Weight: 0.3, Active: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCriteria(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT criteria_name, profile, weight, active, updated_at FROM scoring_criteria`).
		WithArgs("investment").
		WillReturnRows(pgxmock.NewRows([]string{"criteria_name", "profile", "weight", "active", "updated_at"}).
			AddRow(model.CriterionInvestmentYield, "investment", 0.35, true, now))

	got, err := s.LoadCriteria(context.Background(), model.ProfileInvestment)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ProfileInvestment, got[0].Profile)
	assert.InDelta(t, 0.35, got[0].Weight, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSetting_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).
		WithArgs("scoring.mix").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSetting(context.Background(), "scoring.mix")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSetting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "settings" .* ON CONFLICT \("key"\)`).
		WithArgs("city_a", []byte(`{"name":"Oviedo"}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetSetting(context.Background(), "city_a", []byte(`{"name":"Oviedo"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE enrichment_runs SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), &model.Run{ID: "gone", Status: model.RunStatusFailed})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS listings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

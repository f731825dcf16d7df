package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

func newTestRepo(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type failingRepo struct{}

func (failingRepo) GetSetting(context.Context, string) ([]byte, error) {
	return nil, errors.New("db down")
}

func (failingRepo) SetSetting(context.Context, string, []byte) error {
	return errors.New("db down")
}

func TestCities_DefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	pair, err := NewCities(newTestRepo(t)).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCityPair, pair)
	assert.Equal(t, "Oviedo", pair.A.Name)
	assert.InDelta(t, 43.5322, pair.B.Lat, 1e-9)
}

func TestCities_SetAndGet(t *testing.T) {
	t.Parallel()

	c := NewCities(newTestRepo(t))
	ctx := context.Background()
	santander, ok := Lookup("santander")
	require.True(t, ok)

	want := model.CityPair{A: santander, B: model.DefaultCityPair.B}
	require.NoError(t, c.Set(ctx, want))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCities_SetRejectsInvalid(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	c := NewCities(repo)
	err := c.Set(context.Background(), model.CityPair{A: model.DefaultCityPair.A, B: model.ReferenceCity{Name: "X", Lat: 95}})
	require.Error(t, err)

	_, err = repo.GetSetting(context.Background(), KeyCityA)
	assert.True(t, errors.Is(err, store.ErrNotFound), "nothing is written when validation fails")
}

func TestCities_CorruptSlotFallsBack(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SetSetting(ctx, KeyCityA, []byte(`{not json`)))
	require.NoError(t, repo.SetSetting(ctx, KeyCityB, []byte(`{"name":"Bilbao","lat":43.263,"lon":-2.935}`)))

	got, err := NewCities(repo).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCityPair.A, got.A)
	assert.Equal(t, "Bilbao", got.B.Name)

	require.NoError(t, repo.SetSetting(ctx, KeyCityB, []byte(`{"name":"","lat":0,"lon":0}`)))
	got, err = NewCities(repo).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCityPair.B, got.B)
}

func TestCities_RepoError(t *testing.T) {
	t.Parallel()

	pair, err := NewCities(failingRepo{}).Get(context.Background())
	assert.Error(t, err)
	assert.Equal(t, model.DefaultCityPair, pair)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	c, ok := Lookup("GIJON")
	require.True(t, ok)
	assert.Equal(t, "Gijón", c.Name)

	c, ok = Lookup("leon")
	require.True(t, ok)
	assert.Equal(t, "León", c.Name)

	_, ok = Lookup("Lugo")
	assert.False(t, ok)

	names := RegistryNames()
	assert.Len(t, names, len(Registry))
	assert.Equal(t, "Avilés", names[0])
}

func TestValidateMix(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateMix(model.DefaultMix))
	assert.NoError(t, ValidateMix(model.Mix{Investment: 0.3333, Lifestyle: 0.6669}))
	assert.Error(t, ValidateMix(model.Mix{Investment: 0.5, Lifestyle: 0.6}))
	assert.Error(t, ValidateMix(model.Mix{Investment: -0.2, Lifestyle: 1.2}))
}

func TestMix_GetSet(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	m := NewMix(repo, model.DefaultMix)

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMix, got)

	require.NoError(t, m.Set(ctx, model.Mix{Investment: 0.5, Lifestyle: 0.5}))
	got, err = m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Mix{Investment: 0.5, Lifestyle: 0.5}, got)

	assert.Error(t, m.Set(ctx, model.Mix{Investment: 0.9, Lifestyle: 0.9}))
}

func TestMix_InvalidStoredUsesFallback(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SetSetting(ctx, KeyMix, []byte(`{"investment":0.9,"lifestyle":0.9}`)))

	fallback := model.Mix{Investment: 0.4, Lifestyle: 0.6}
	got, err := NewMix(repo, fallback).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = NewMix(repo, model.Mix{Investment: 2}).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMix, got, "invalid fallback is replaced by the default")
}

// Package settings reads and writes runtime-configurable values: the two
// reference cities and the combined-score mix.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
)

// Setting keys.
const (
	KeyCityA = "city_a"
	KeyCityB = "city_b"
	KeyMix   = "scoring.mix"
)

// Repository is the key/value persistence used for settings.
type Repository interface {
	GetSetting(ctx context.Context, key string) ([]byte, error)
	SetSetting(ctx context.Context, key string, value []byte) error
}

// Cities manages the reference-city pair.
type Cities struct {
	repo Repository
}

// NewCities creates a Cities manager.
func NewCities(repo Repository) *Cities {
	return &Cities{repo: repo}
}

// Get returns the stored pair. A slot that is missing or invalid falls back
// to its default city.
func (c *Cities) Get(ctx context.Context) (model.CityPair, error) {
	pair := model.DefaultCityPair

	a, err := c.slot(ctx, KeyCityA)
	if err != nil {
		return pair, err
	}
	if a != nil {
		pair.A = *a
	}

	b, err := c.slot(ctx, KeyCityB)
	if err != nil {
		return pair, err
	}
	if b != nil {
		pair.B = *b
	}
	return pair, nil
}

func (c *Cities) slot(ctx context.Context, key string) (*model.ReferenceCity, error) {
	raw, err := c.repo.GetSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "settings: read %s", key)
	}

	var city model.ReferenceCity
	if err := json.Unmarshal(raw, &city); err != nil {
		zap.L().Warn("settings: stored city is not valid JSON, using default", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if err := city.Validate(); err != nil {
		zap.L().Warn("settings: stored city is invalid, using default", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &city, nil
}

// Set validates both slots and persists them.
func (c *Cities) Set(ctx context.Context, pair model.CityPair) error {
	if err := pair.Validate(); err != nil {
		return eris.Wrap(err, "settings: invalid city pair")
	}
	for _, slot := range []struct {
		key  string
		city model.ReferenceCity
	}{{KeyCityA, pair.A}, {KeyCityB, pair.B}} {
		key := slot.key
		raw, err := json.Marshal(slot.city)
		if err != nil {
			return eris.Wrapf(err, "settings: encode %s", key)
		}
		if err := c.repo.SetSetting(ctx, key, raw); err != nil {
			return eris.Wrapf(err, "settings: write %s", key)
		}
	}
	return nil
}

// Registry lists the cities that can be chosen by name.
var Registry = []model.ReferenceCity{
	{Name: "Oviedo", Lat: 43.3614, Lon: -5.8593},
	{Name: "Gijón", Lat: 43.5322, Lon: -5.6611},
	{Name: "Avilés", Lat: 43.5547, Lon: -5.9248},
	{Name: "Santander", Lat: 43.4623, Lon: -3.8099},
	{Name: "Torrelavega", Lat: 43.3494, Lon: -4.0479},
	{Name: "Madrid", Lat: 40.4168, Lon: -3.7038},
	{Name: "Barcelona", Lat: 41.3874, Lon: 2.1686},
	{Name: "Valencia", Lat: 39.4699, Lon: -0.3763},
	{Name: "Bilbao", Lat: 43.2630, Lon: -2.9350},
	{Name: "León", Lat: 42.5987, Lon: -5.5671},
}

// Lookup finds a registry city by name, ignoring case and accents.
func Lookup(name string) (model.ReferenceCity, bool) {
	folded := textnorm.Fold(name)
	for _, c := range Registry {
		if textnorm.Fold(c.Name) == folded {
			return c, true
		}
	}
	return model.ReferenceCity{}, false
}

// RegistryNames returns the registry city names sorted alphabetically.
func RegistryNames() []string {
	names := make([]string, len(Registry))
	for i, c := range Registry {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

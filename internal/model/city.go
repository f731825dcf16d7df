package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ReferenceCity is a named travel-time destination.
type ReferenceCity struct {
	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lon  float64 `json:"lon" yaml:"lon"`
}

// Validate checks the name and coordinate ranges.
func (c ReferenceCity) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return eris.New("city name is required")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return eris.Errorf("city %s: latitude %f out of range", c.Name, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return eris.Errorf("city %s: longitude %f out of range", c.Name, c.Lon)
	}
	return nil
}

// CityPair holds the two reference-city slots.
type CityPair struct {
	A ReferenceCity `json:"city_a" yaml:"city_a"`
	B ReferenceCity `json:"city_b" yaml:"city_b"`
}

// Validate checks both slots.
func (p CityPair) Validate() error {
	if err := p.A.Validate(); err != nil {
		return eris.Wrap(err, "city_a")
	}
	if err := p.B.Validate(); err != nil {
		return eris.Wrap(err, "city_b")
	}
	return nil
}

// DefaultCityPair is used when the stored pair is missing or invalid.
var DefaultCityPair = CityPair{
	A: ReferenceCity{Name: "Oviedo", Lat: 43.3614, Lon: -5.8593},
	B: ReferenceCity{Name: "Gijón", Lat: 43.5322, Lon: -5.6611},
}

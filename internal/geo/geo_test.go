package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_Symmetry(t *testing.T) {
	t.Parallel()

	pairs := [][4]float64{
		{43.3614, -5.8593, 43.5322, -5.6611},
		{43.36, -4.57, 43.4270, -3.8201},
		{40.4168, -3.7038, 41.3874, 2.1686},
	}
	for _, p := range pairs {
		ab := Haversine(p[0], p[1], p[2], p[3])
		ba := Haversine(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9)
		assert.Greater(t, ab, 0.0)
	}
}

func TestHaversine_Zero(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Haversine(43.36, -4.57, 43.36, -4.57))
}

func TestHaversine_KnownDistance(t *testing.T) {
	t.Parallel()
	// Oviedo to Gijón is roughly 24 km in a straight line.
	d := Haversine(43.3614, -5.8593, 43.5322, -5.6611)
	assert.InDelta(t, 24.5, d, 1.5)
	assert.InDelta(t, d*1000, DistanceMeters(43.3614, -5.8593, 43.5322, -5.6611), 1e-6)
	assert.InDelta(t, d, Point{43.3614, -5.8593}.Distance(Point{43.5322, -5.6611}), 1e-9)
}

func TestOnCoast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lat, lon float64
		region   string
	}{
		{"gijon", 43.5322, -5.6611, "asturias"},
		{"llanes", 43.4200, -4.7550, "asturias"},
		{"santander", 43.4623, -3.8099, "cantabria"},
		{"oviedo inland", 43.3614, -5.8593, ""},
		{"madrid", 40.4168, -3.7038, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.region, CoastRegion(tt.lat, tt.lon))
			assert.Equal(t, tt.region != "", OnCoast(tt.lat, tt.lon))
		})
	}
}

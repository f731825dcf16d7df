package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

func TestAnalyzeEnvironment_SeaViewOnCoast(t *testing.T) {
	l := &model.Listing{Title: "Finca en Llanes", Description: "Parcela con vista al mar y orientación sur"}
	l.SetLocation(43.4199, -4.7549, model.AccuracyApproximate)

	meta := AnalyzeEnvironment(l)
	require.NotNil(t, l.Environment.SeaView)
	assert.True(t, *l.Environment.SeaView)
	assert.True(t, l.Environment.CoastChecked)
	assert.Equal(t, "south", l.Environment.Orientation)
	assert.Equal(t, true, meta["analyzed"])
}

func TestAnalyzeEnvironment_InlandRejectsSeaText(t *testing.T) {
	l := &model.Listing{Title: "Terreno en León", Description: "Cerca de la playa fluvial, bosque de robles"}
	l.SetLocation(42.5987, -5.5671, model.AccuracyApproximate)

	AnalyzeEnvironment(l)
	require.NotNil(t, l.Environment.SeaView)
	assert.False(t, *l.Environment.SeaView)
	assert.True(t, l.Environment.CoastChecked)
	assert.True(t, *l.Environment.ForestView)
	assert.False(t, *l.Environment.MountainView)
}

func TestAnalyzeEnvironment_NoCoordinatesTrustsText(t *testing.T) {
	l := &model.Listing{Description: "Sea view plot near the beach, mountain backdrop"}

	AnalyzeEnvironment(l)
	assert.True(t, *l.Environment.SeaView)
	assert.False(t, l.Environment.CoastChecked)
	assert.True(t, *l.Environment.MountainView)
}

func TestAnalyzeEnvironment_Idempotent(t *testing.T) {
	l := &model.Listing{Title: "Land in Noriega", Description: "Prado verde con vistas a la montaña, orientado al este"}
	l.SetLocation(43.3636546, -4.5727598, model.AccuracyPrecise)

	AnalyzeEnvironment(l)
	first := l.Environment
	AnalyzeEnvironment(l)
	assert.Equal(t, first, l.Environment)
	assert.Equal(t, "east", l.Environment.Orientation)
}

func TestAnalyzeEnvironment_NoText(t *testing.T) {
	l := &model.Listing{}
	meta := AnalyzeEnvironment(l)
	assert.Equal(t, false, meta["analyzed"])
	assert.False(t, l.Environment.Recorded())
}

func TestDetectOrientation(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Orientación sur, muy soleado", "south"},
		{"Orientación suroeste", "southwest"},
		{"fachada NORESTE", "northeast"},
		{"South-west facing slope", "southwest"},
		{"facing north", "north"},
		{"orientada al este", "east"},
		{"Este terreno es llano", ""},
		{"Asturias", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOrientation(tt.text))
		})
	}
}

package enrichment

import (
	"regexp"
	"strings"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/geo"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
)

var (
	seaKeywords      = []string{"mar", "playa", "costa", "litoral", "vista al mar", "sea view", "beach", "coast", "seaside", "ocean"}
	mountainKeywords = []string{"montaña", "sierra", "monte", "vista montaña", "mountain", "hills"}
	forestKeywords   = []string{"bosque", "forestal", "pinar", "verde", "forest", "woods", "woodland"}
)

// orientationWords maps folded direction words to a canonical orientation.
// Compound directions come first so "suroeste" never reads as "sur".
var orientationWords = []struct {
	word        string
	orientation string
}{
	{"noreste", "northeast"}, {"noroeste", "northwest"},
	{"sureste", "southeast"}, {"suroeste", "southwest"},
	{"north-east", "northeast"}, {"northeast", "northeast"},
	{"north-west", "northwest"}, {"northwest", "northwest"},
	{"south-east", "southeast"}, {"southeast", "southeast"},
	{"south-west", "southwest"}, {"southwest", "southwest"},
	{"norte", "north"}, {"sur", "south"}, {"oeste", "west"},
	{"north", "north"}, {"south", "south"}, {"east", "east"}, {"west", "west"},
}

// "este" is also the Spanish demonstrative "this", so it only counts after
// an orientation cue.
var eastCue = regexp.MustCompile(`(?:orientacion|orientad[oa]|exposicion|cara|hacia|mirando)\s+(?:al\s+|el\s+)?este\b`)

// AnalyzeEnvironment derives view flags and orientation from the listing text.
// Sea view also requires the coordinates, when known, to lie on the coast.
// The result depends only on the listing, so repeated calls agree.
func AnalyzeEnvironment(l *model.Listing) map[string]any {
	text := strings.Join([]string{l.Description, l.Title, l.Municipality}, " ")
	if strings.TrimSpace(text) == "" {
		return map[string]any{"analyzed": false}
	}

	seaText := textnorm.ContainsAnyWord(text, seaKeywords)
	coastChecked := false
	sea := seaText
	if seaText && l.HasLocation() {
		coastChecked = true
		sea = geo.OnCoast(*l.Lat, *l.Lon)
	}

	l.Environment.SeaView = model.Bool(sea)
	l.Environment.MountainView = model.Bool(textnorm.ContainsAnyWord(text, mountainKeywords))
	l.Environment.ForestView = model.Bool(textnorm.ContainsAnyWord(text, forestKeywords))
	l.Environment.Orientation = DetectOrientation(text)
	l.Environment.CoastChecked = coastChecked

	return map[string]any{
		"analyzed":      true,
		"sea_view":      sea,
		"sea_text":      seaText,
		"coast_checked": coastChecked,
		"orientation":   l.Environment.Orientation,
	}
}

// DetectOrientation returns the canonical orientation named in text, or "".
func DetectOrientation(text string) string {
	for _, o := range orientationWords {
		if textnorm.ContainsWord(text, o.word) {
			return o.orientation
		}
	}
	if eastCue.MatchString(textnorm.Fold(text)) {
		return "east"
	}
	return ""
}


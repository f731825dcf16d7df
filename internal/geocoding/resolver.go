// Package geocoding turns noisy listing municipality text into coordinates
// through a precise → approximate → regional ladder of geocoder queries.
package geocoding

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/textnorm"
	"github.com/sergi039/idealista-tracker-ai-sub000/pkg/geocode"
)

// Geocoder resolves a single address query.
type Geocoder interface {
	Geocode(ctx context.Context, req geocode.Request) (*geocode.Result, error)
}

// ClaimChecker reports whether exact coordinates already belong to another listing.
type ClaimChecker interface {
	CoordinatesClaimed(ctx context.Context, lat, lon float64, excludeID int64) (bool, error)
}

// Attempt is one geocoder query and the accuracy it earns on success.
type Attempt struct {
	Query    string
	Accuracy model.Accuracy
}

// Resolution is an accepted geocoding result.
type Resolution struct {
	Lat      float64
	Lon      float64
	Accuracy model.Accuracy
	Query    string
}

// Resolver runs the attempt ladder for a listing.
type Resolver struct {
	geocoder Geocoder
	claims   ClaimChecker
	region   string
}

// NewResolver creates a Resolver. claims may be nil, which disables
// duplicate-coordinate rejection.
func NewResolver(g Geocoder, claims ClaimChecker) *Resolver {
	return &Resolver{geocoder: g, claims: claims, region: "es"}
}

// Resolve geocodes the listing. It returns nil with no error when the
// municipality is unusable or no attempt produced an acceptable result.
func (r *Resolver) Resolve(ctx context.Context, l *model.Listing) (*Resolution, error) {
	log := zap.L().With(zap.Int64("listing_id", l.ID))

	cleaned, ok := listingMunicipality(l)
	if !ok {
		log.Info("geocoding: municipality rejected",
			zap.String("municipality", l.Municipality),
			zap.String("title", l.Title),
		)
		return nil, nil
	}

	for _, attempt := range BuildAttempts(cleaned) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := r.geocoder.Geocode(ctx, geocode.Request{Address: attempt.Query, Region: r.region})
		if err != nil {
			log.Warn("geocoding: attempt failed",
				zap.String("query", attempt.Query),
				zap.String("accuracy", string(attempt.Accuracy)),
				zap.Error(err),
			)
			continue
		}
		if res == nil || !res.Matched {
			continue
		}

		if attempt.Accuracy == model.AccuracyPrecise && r.claims != nil {
			claimed, err := r.claims.CoordinatesClaimed(ctx, res.Lat, res.Lon, l.ID)
			if err != nil {
				log.Warn("geocoding: duplicate check failed, skipping precise attempt", zap.Error(err))
				continue
			}
			if claimed {
				log.Info("geocoding: precise coordinates already claimed, falling through",
					zap.String("query", attempt.Query),
					zap.Float64("lat", res.Lat),
					zap.Float64("lon", res.Lon),
				)
				continue
			}
		}

		log.Info("geocoding: resolved",
			zap.String("query", attempt.Query),
			zap.String("accuracy", string(attempt.Accuracy)),
			zap.String("source", res.Source),
		)
		return &Resolution{Lat: res.Lat, Lon: res.Lon, Accuracy: attempt.Accuracy, Query: attempt.Query}, nil
	}

	log.Warn("geocoding: no attempt succeeded", zap.String("municipality", cleaned))
	return nil, nil
}

// listingMunicipality returns the cleaned municipality of l, falling back
// to one extracted from the title.
func listingMunicipality(l *model.Listing) (string, bool) {
	raw := l.Municipality
	if strings.TrimSpace(raw) == "" {
		raw = ExtractMunicipalityFromTitle(l.Title)
	}
	return CleanMunicipality(raw)
}

// BatchGeocoder geocodes many queries in one call and caches what matches.
type BatchGeocoder interface {
	BatchGeocode(ctx context.Context, reqs []geocode.Request) []geocode.Result
}

// Prefetch sends the first attempt query of every listing without
// coordinates through the geocoder's batch path, so the per-listing Resolve
// calls that follow hit its cache. Queries shared by several listings are
// sent once. It returns the number of matched queries and does nothing when
// the geocoder cannot batch.
func (r *Resolver) Prefetch(ctx context.Context, ls []*model.Listing) int {
	bg, ok := r.geocoder.(BatchGeocoder)
	if !ok {
		return 0
	}

	seen := make(map[string]bool)
	var reqs []geocode.Request
	for _, l := range ls {
		if l.HasLocation() {
			continue
		}
		cleaned, ok := listingMunicipality(l)
		if !ok {
			continue
		}
		attempts := BuildAttempts(cleaned)
		if len(attempts) == 0 || seen[attempts[0].Query] {
			continue
		}
		seen[attempts[0].Query] = true
		reqs = append(reqs, geocode.Request{Address: attempts[0].Query, Region: r.region})
	}
	if len(reqs) == 0 {
		return 0
	}

	matched := 0
	for _, res := range bg.BatchGeocode(ctx, reqs) {
		if res.Matched {
			matched++
		}
	}
	zap.L().Info("geocoding: prefetched queries",
		zap.Int("queries", len(reqs)),
		zap.Int("matched", matched),
	)
	return matched
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:land|terreno|finca|parcela|solar)\s+(?:in|en)\s+(.+)$`),
	regexp.MustCompile(`\b(?:in|en)\s+([A-ZÁÉÍÓÚÑ][^,]+(?:,\s*[^,]+){0,2})$`),
	regexp.MustCompile(`\s-\s+([A-ZÁÉÍÓÚÑ][\p{L}' ]+(?:,\s*[\p{L}' ]+){0,2})$`),
}

var titleStopwords = map[string]bool{
	"and": true, "en": true, "de": true, "del": true, "la": true, "el": true, "por": true,
	"con": true, "y": true, "e": true, "with": true, "for": true, "in": true, "of": true, "the": true,
}

var regionName = regexp.MustCompile(`(?i)\b(?:asturias|cantabria|spain)\b`)

// ExtractMunicipalityFromTitle pulls a "Land in X, Y" style location out of a
// listing title. It returns "" when no candidate passes validation.
func ExtractMunicipalityFromTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, re := range titlePatterns {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(strings.TrimRight(m[1], " .;:"))
		if validTitleMunicipality(candidate) {
			return textnorm.Title(candidate)
		}
	}
	return ""
}

func validTitleMunicipality(s string) bool {
	if len([]rune(s)) <= 2 {
		return false
	}
	if strings.ContainsAny(s, "0123456789") {
		return false
	}
	fields := strings.Fields(s)
	if len(fields) == 0 || titleStopwords[strings.ToLower(fields[0])] {
		return false
	}
	if strings.Contains(s, ",") || regionName.MatchString(s) || len(fields) >= 2 {
		return true
	}

	n := len([]rune(s))
	if n < 3 || n > 30 {
		return false
	}
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
		if i == 0 && !unicode.IsUpper(r) {
			return false
		}
		if i > 0 && unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

var badMunicipalities = map[string]bool{
	"": true, "and": true, "n/a": true, "na": true, "none": true, "null": true, "-": true,
}

// CleanMunicipality trims and normalizes municipality text. ok is false for
// known-bad literal values.
func CleanMunicipality(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '«', '»', '“', '”', '‘', '’', '`':
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " - ", ", ")
	s = strings.Trim(s, " ,")

	if badMunicipalities[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

var streetKeywords = []string{"calle", "carretera", "lugar", "avenida", "plaza", "camino", "barrio"}

var genericNames = map[string]bool{
	"asturias": true, "principado de asturias": true, "cantabria": true, "spain": true, "espana": true,
}

// regionalCities maps folded municipality substrings to a fixed geocoder query.
var regionalCities = []struct {
	key   string
	query string
}{
	{"oviedo", "Oviedo, Asturias, Spain"},
	{"gijon", "Gijón, Asturias, Spain"},
	{"aviles", "Avilés, Asturias, Spain"},
	{"llanes", "Llanes, Asturias, Spain"},
	{"ribadesella", "Ribadesella, Asturias, Spain"},
	{"ribadedeva", "Ribadedeva, Asturias, Spain"},
	{"cudillero", "Cudillero, Asturias, Spain"},
	{"villaviciosa", "Villaviciosa, Asturias, Spain"},
	{"santander", "Santander, Cantabria, Spain"},
	{"torrelavega", "Torrelavega, Cantabria, Spain"},
	{"comillas", "Comillas, Cantabria, Spain"},
	{"suances", "Suances, Cantabria, Spain"},
	{"san vicente", "San Vicente de la Barquera, Cantabria, Spain"},
}

// IsTooGeneric reports whether s names only a region or the country.
func IsTooGeneric(s string) bool {
	parts := strings.Split(textnorm.Fold(s), ",")
	for _, p := range parts {
		if !genericNames[strings.TrimSpace(p)] {
			return false
		}
	}
	return true
}

// BuildAttempts returns the ordered geocoder queries for a cleaned municipality.
func BuildAttempts(cleaned string) []Attempt {
	query := withCountry(cleaned)
	generic := IsTooGeneric(cleaned)

	var attempts []Attempt
	detailed := strings.Contains(cleaned, ",")
	for _, kw := range streetKeywords {
		if detailed {
			break
		}
		detailed = textnorm.ContainsWord(cleaned, kw)
	}
	if detailed && !generic {
		attempts = append(attempts, Attempt{Query: query, Accuracy: model.AccuracyPrecise})
	}
	if !generic {
		attempts = append(attempts, Attempt{Query: query, Accuracy: model.AccuracyApproximate})
	}
	attempts = append(attempts, RegionalFallbacks(cleaned)...)

	// Precise and approximate share a query on purpose; only non-precise
	// repeats are redundant.
	seen := make(map[string]bool)
	out := attempts[:0]
	for _, a := range attempts {
		if a.Accuracy != model.AccuracyPrecise {
			key := textnorm.Fold(a.Query)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, a)
	}
	return out
}

// RegionalFallbacks returns the known-city query for the municipality, or the
// two region-wide queries.
func RegionalFallbacks(cleaned string) []Attempt {
	folded := textnorm.Fold(cleaned)
	for _, c := range regionalCities {
		if strings.Contains(folded, c.key) {
			return []Attempt{{Query: c.query, Accuracy: model.AccuracyRegional}}
		}
	}
	return []Attempt{
		{Query: "Asturias, Spain", Accuracy: model.AccuracyRegional},
		{Query: "Cantabria, Spain", Accuracy: model.AccuracyRegional},
	}
}

func withCountry(s string) string {
	folded := textnorm.Fold(s)
	if strings.HasSuffix(folded, "spain") || strings.HasSuffix(folded, "espana") {
		return s
	}
	return s + ", Spain"
}

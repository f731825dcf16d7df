package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// listingColumns is the column order shared by the SELECT and scan helpers.
const listingColumns = `id, source_id, title, url, description, municipality, price, area,
	land_type, legal_status, location_lat, location_lon, location_accuracy,
	infrastructure_basic, infrastructure_extended, transport, environment,
	services_quality, travel, extra, score_total, score_investment, score_lifestyle,
	created_at, updated_at`

// listingFacts holds the JSON-encoded fact containers of a listing.
type listingFacts struct {
	Infrastructure []byte
	Amenities      []byte
	Transport      []byte
	Environment    []byte
	Services       []byte
	Travel         []byte
	Extra          []byte
}

func encodeFacts(l *model.Listing) (*listingFacts, error) {
	var f listingFacts
	var err error
	for _, item := range []struct {
		dst  *[]byte
		src  any
		name string
	}{
		{&f.Infrastructure, l.Infrastructure, "infrastructure_basic"},
		{&f.Amenities, l.Amenities, "infrastructure_extended"},
		{&f.Transport, l.Transport, "transport"},
		{&f.Environment, l.Environment, "environment"},
		{&f.Services, l.Services, "services_quality"},
		{&f.Travel, l.Travel, "travel"},
		{&f.Extra, l.Extra, "extra"},
	} {
		*item.dst, err = json.Marshal(item.src)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal %s", item.name)
		}
	}
	return &f, nil
}

func decodeFacts(l *model.Listing, f *listingFacts) error {
	for _, item := range []struct {
		src  []byte
		dst  any
		name string
	}{
		{f.Infrastructure, &l.Infrastructure, "infrastructure_basic"},
		{f.Amenities, &l.Amenities, "infrastructure_extended"},
		{f.Transport, &l.Transport, "transport"},
		{f.Environment, &l.Environment, "environment"},
		{f.Services, &l.Services, "services_quality"},
		{f.Travel, &l.Travel, "travel"},
		{f.Extra, &l.Extra, "extra"},
	} {
		if len(item.src) == 0 || string(item.src) == "null" {
			continue
		}
		if err := json.Unmarshal(item.src, item.dst); err != nil {
			return eris.Wrapf(err, "store: unmarshal %s", item.name)
		}
	}
	return nil
}

func accuracyOrUnknown(l *model.Listing) string {
	if !l.HasLocation() {
		return ""
	}
	if !l.Accuracy.Valid() {
		return string(model.AccuracyUnknown)
	}
	return string(l.Accuracy)
}

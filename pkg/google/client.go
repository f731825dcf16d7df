// Package google wraps the Google Places Nearby Search and Distance Matrix
// APIs used for listing enrichment.
package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"googlemaps.github.io/maps"
)

// MaxDestinations is the Distance Matrix element limit for a single origin.
const MaxDestinations = 25

// Client performs Google Places and Distance Matrix operations.
type Client interface {
	Nearby(ctx context.Context, req NearbyRequest) ([]Place, error)
	DistanceMatrix(ctx context.Context, origin LatLng, destinations []string) ([]*Leg, error)
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64
	Lon float64
}

// String formats the pair the way the Distance Matrix API expects.
func (l LatLng) String() string {
	return fmt.Sprintf("%f,%f", l.Lat, l.Lon)
}

// NearbyRequest is a typed Nearby Search around a point.
type NearbyRequest struct {
	Lat     float64
	Lon     float64
	Type    string
	RadiusM int
}

// Place is a single Nearby Search result.
type Place struct {
	Name    string
	PlaceID string
	Rating  *float64
	Lat     float64
	Lon     float64
}

// Leg is one origin-destination element of a Distance Matrix response.
type Leg struct {
	DurationS int
	DistanceM int
}

// Option configures the client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  int
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithRateLimit caps requests per second across the client.
func WithRateLimit(rps int) Option {
	return func(o *options) {
		o.rateLimit = rps
	}
}

type mapsClient struct {
	maps *maps.Client
}

// NewClient creates a Google Maps client. An empty key is an error.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("google: api key not configured")
	}

	o := &options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	mopts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(o.httpClient),
	}
	if o.baseURL != "" {
		mopts = append(mopts, maps.WithBaseURL(o.baseURL))
	}
	if o.rateLimit > 0 {
		mopts = append(mopts, maps.WithRateLimit(o.rateLimit))
	}

	mc, err := maps.NewClient(mopts...)
	if err != nil {
		return nil, eris.Wrap(err, "google: create client")
	}
	return &mapsClient{maps: mc}, nil
}

func (c *mapsClient) Nearby(ctx context.Context, req NearbyRequest) ([]Place, error) {
	if req.RadiusM <= 0 {
		return nil, eris.New("google: nearby radius must be positive")
	}

	resp, err := c.maps.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: req.Lat, Lng: req.Lon},
		Radius:   uint(req.RadiusM),
		Type:     maps.PlaceType(req.Type),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "google: nearby search %s", req.Type)
	}

	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := Place{
			Name:    r.Name,
			PlaceID: r.PlaceID,
			Lat:     r.Geometry.Location.Lat,
			Lon:     r.Geometry.Location.Lng,
		}
		if r.Rating > 0 {
			rating := float64(r.Rating)
			p.Rating = &rating
		}
		places = append(places, p)
	}
	return places, nil
}

func (c *mapsClient) DistanceMatrix(ctx context.Context, origin LatLng, destinations []string) ([]*Leg, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) > MaxDestinations {
		return nil, eris.Errorf("google: distance matrix accepts at most %d destinations, got %d", MaxDestinations, len(destinations))
	}

	resp, err := c.maps.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin.String()},
		Destinations: destinations,
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: distance matrix")
	}
	if len(resp.Rows) == 0 {
		return nil, eris.New("google: distance matrix returned no rows")
	}

	elements := resp.Rows[0].Elements
	if len(elements) != len(destinations) {
		return nil, eris.Errorf("google: distance matrix returned %d elements for %d destinations", len(elements), len(destinations))
	}

	legs := make([]*Leg, len(elements))
	for i, el := range elements {
		if el == nil || el.Status != "OK" {
			continue
		}
		legs[i] = &Leg{
			DurationS: int(el.Duration / time.Second),
			DistanceM: el.Distance.Meters,
		}
	}
	return legs, nil
}

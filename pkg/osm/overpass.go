// Package osm queries the OpenStreetMap Overpass API for amenities.
package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/resilience"
)

const defaultOverpassURL = "https://overpass-api.de/api/interpreter"

// DefaultAmenityPattern is the amenity tag regex used for listing enrichment.
const DefaultAmenityPattern = "^(supermarket|school|hospital|restaurant|cafe|fuel)$"

// Element is a single Overpass node, way, or relation.
type Element struct {
	ID   int64             `json:"id"`
	Type string            `json:"type"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

// Client performs Overpass queries.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the interpreter URL.
func WithEndpoint(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.endpoint = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an Overpass client. Overpass queries can be slow, so the
// default timeout is longer than the other providers'.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:   defaultOverpassURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildQuery renders the Overpass QL query for amenities matching tagRegex
// within radiusM of the point.
func BuildQuery(lat, lon float64, radiusM int, tagRegex string) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", radiusM, lat, lon)
	filter := fmt.Sprintf(`["amenity"~"%s"]`, tagRegex)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, kind := range []string{"node", "way", "relation"} {
		b.WriteString("  ")
		b.WriteString(kind)
		b.WriteString(filter)
		b.WriteString(around)
		b.WriteString(";\n")
	}
	b.WriteString(");\nout center;")
	return b.String()
}

// AmenitiesNear returns the amenities matching tagRegex around the point.
func (c *Client) AmenitiesNear(ctx context.Context, lat, lon float64, radiusM int, tagRegex string) ([]Element, error) {
	if tagRegex == "" {
		tagRegex = DefaultAmenityPattern
	}

	form := url.Values{"data": {BuildQuery(lat, lon, radiusM, tagRegex)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "osm: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("osm: overpass", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "osm: read body")
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "osm: parse response")
	}
	return parsed.Elements, nil
}

// CountAmenities tallies elements by their amenity tag.
func CountAmenities(elements []Element) map[string]int {
	counts := make(map[string]int)
	for _, el := range elements {
		if amenity := el.Tags["amenity"]; amenity != "" {
			counts[amenity]++
		}
	}
	return counts
}

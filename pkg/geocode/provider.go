// Package geocode resolves free-text addresses to coordinates using Google
// Geocoding (primary) and Nominatim (fallback).
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Available() bool
	Geocode(ctx context.Context, req Request) (*Result, error)
}

// Request is one address query.
type Request struct {
	Address string
	// Region is a ccTLD bias such as "es".
	Region string
}

// Result holds the geocoding output for an address.
type Result struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	Source           string // "google" or "nominatim"
	Matched          bool
}

// Option configures a provider.
type Option func(*httpProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *httpProvider) {
		p.httpClient = hc
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(p *httpProvider) {
		p.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(p *httpProvider) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *httpProvider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// httpProvider holds the plumbing shared by the HTTP-backed providers.
type httpProvider struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

func newHTTPProvider(baseURL string, rps float64, opts []Option) httpProvider {
	p := httpProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

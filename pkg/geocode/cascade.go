package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cascade tries providers in order until one matches.
type Cascade struct {
	providers        []Provider
	region           string
	batchConcurrency int

	mu    sync.RWMutex
	cache map[string]*Result
}

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

// WithRegion sets the default region bias applied to requests without one.
func WithRegion(region string) CascadeOption {
	return func(c *Cascade) {
		c.region = region
	}
}

// WithBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(c *Cascade) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// NewCascade creates a Cascade over the given providers.
func NewCascade(providers []Provider, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		providers:        providers,
		region:           "es",
		batchConcurrency: 1,
		cache:            make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *Cascade) Name() string { return "cascade" }

// Available implements Provider.
func (c *Cascade) Available() bool {
	for _, p := range c.providers {
		if p.Available() {
			return true
		}
	}
	return false
}

// Geocode implements Provider. Provider errors are logged and the next
// provider is tried; only matched results are cached.
func (c *Cascade) Geocode(ctx context.Context, req Request) (*Result, error) {
	if req.Region == "" {
		req.Region = c.region
	}
	key := cacheKey(req)

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		zap.L().Debug("geocode: cache hit", zap.String("key", key[:12]))
		r := *cached
		return &r, nil
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, req)
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.String("address", req.Address),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			c.mu.Lock()
			c.cache[key] = result
			c.mu.Unlock()
			r := *result
			return &r, nil
		}
	}

	return &Result{Matched: false, Source: "cascade"}, nil
}

// BatchGeocode geocodes requests with bounded parallelism. Individual
// failures yield unmatched results rather than failing the batch.
func (c *Cascade) BatchGeocode(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, req := range reqs {
		eg.Go(func() error {
			r, err := c.Geocode(gCtx, req)
			if err != nil || r == nil {
				results[i] = Result{Matched: false, Source: "cascade"}
				return nil //nolint:nilerr // individual geocode failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

// cacheKey returns the SHA-256 hex of the normalized request.
func cacheKey(req Request) string {
	normalized := fmt.Sprintf("%s|%s",
		strings.ToLower(strings.Join(strings.Fields(req.Address), " ")),
		strings.ToLower(req.Region),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

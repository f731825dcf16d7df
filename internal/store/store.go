// Package store persists listings, scoring weights, settings and enrichment
// runs in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// ErrNotFound is returned when a listing, setting or run does not exist.
var ErrNotFound = eris.New("store: not found")

// ListingFilter specifies which listing IDs to return.
type ListingFilter struct {
	// OnlyPending selects listings without a score or without coordinates.
	OnlyPending bool  `json:"only_pending,omitempty"`
	AfterID     int64 `json:"after_id,omitempty"`
	Limit       int   `json:"limit,omitempty"`
}

// Store defines the persistence interface for the enrichment and scoring pipeline.
type Store interface {
	// Listings
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
	SaveListing(ctx context.Context, l *model.Listing) error
	SaveListingsBatch(ctx context.Context, ls []*model.Listing) error
	ListingIDs(ctx context.Context, filter ListingFilter) ([]int64, error)
	CoordinatesClaimed(ctx context.Context, lat, lon float64, excludeID int64) (bool, error)

	// Scoring criteria
	LoadCriteria(ctx context.Context, profile model.Profile) ([]model.ScoringCriterion, error)
	SaveCriteria(ctx context.Context, profile model.Profile, criteria []model.ScoringCriterion) error

	// Settings
	GetSetting(ctx context.Context, key string) ([]byte, error)
	SetSetting(ctx context.Context, key string, value []byte) error

	// Enrichment runs
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/enrichment"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

// Listings reads stored listings.
type Listings interface {
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
}

// Scores computes, saves and rescores listing scores.
type Scores interface {
	ScoreListing(ctx context.Context, id int64) (*model.ScoreBreakdown, error)
	RescoreAll(ctx context.Context, batchSize int) (*scoring.RescoreReport, error)
}

// Enricher runs the enrichment phases for one listing.
type Enricher interface {
	Enrich(ctx context.Context, id int64) (*model.Run, error)
}

// Weights reads and replaces stored criterion weights.
type Weights interface {
	Raw(ctx context.Context, profile model.Profile) (scoring.Weights, error)
	Update(ctx context.Context, profile model.Profile, w scoring.Weights) error
}

// Cities reads and replaces the reference city pair.
type Cities interface {
	Get(ctx context.Context) (model.CityPair, error)
	Set(ctx context.Context, pair model.CityPair) error
}

// Handlers contains HTTP handlers and their dependencies.
type Handlers struct {
	listings  Listings
	scores    Scores
	enricher  Enricher
	weights   Weights
	cities    Cities
	batchSize int

	// background runs detached work started by a request. Tests replace it
	// to run synchronously.
	background func(func(ctx context.Context))
}

// NewHandlers creates Handlers. Background jobs run on base, which should
// outlive individual requests.
func NewHandlers(base context.Context, listings Listings, scores Scores, enricher Enricher, weights Weights, cities Cities, batchSize int) *Handlers {
	if batchSize <= 0 {
		batchSize = scoring.DefaultBatchSize
	}
	return &Handlers{
		listings:   listings,
		scores:     scores,
		enricher:   enricher,
		weights:    weights,
		cities:     cities,
		batchSize:  batchSize,
		background: func(fn func(ctx context.Context)) { go fn(base) },
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetScore handles GET /api/listings/{id}/score. A listing that was never
// scored is scored on demand.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}

	l, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if l.Environment.Scoring != nil {
		writeJSON(w, http.StatusOK, l.Environment.Scoring)
		return
	}

	b, err := h.scores.ScoreListing(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Enrich handles POST /api/listings/{id}/enrich. The run happens in the
// background.
func (h *Handlers) Enrich(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if _, err := h.listings.GetListing(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.background(func(ctx context.Context) {
		run, err := h.enricher.Enrich(ctx, id)
		if err != nil {
			zap.L().Error("api: enrichment failed", zap.Int64("listing_id", id), zap.Error(err))
			return
		}
		zap.L().Info("api: enrichment complete", zap.Int64("listing_id", id), zap.String("run_id", run.ID))
	})

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "listing_id": id})
}

// GetWeights handles GET /api/weights/{profile}.
func (h *Handlers) GetWeights(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileParam(w, r)
	if !ok {
		return
	}
	weights, err := h.weights.Raw(r.Context(), profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":    profile,
		"weights":    weights,
		"normalized": scoring.Normalize(weights),
	})
}

// PutWeights handles PUT /api/weights/{profile} and starts a full rescore.
func (h *Handlers) PutWeights(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileParam(w, r)
	if !ok {
		return
	}
	var body scoring.Weights
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.weights.Update(r.Context(), profile, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.background(func(ctx context.Context) {
		report, err := h.scores.RescoreAll(ctx, h.batchSize)
		if err != nil {
			zap.L().Error("api: rescore failed", zap.Error(err))
			return
		}
		zap.L().Info("api: rescore complete",
			zap.Int("scored", report.Scored),
			zap.Int("failed_batches", report.FailedBatches),
		)
	})

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "profile": profile, "rescore": true})
}

// GetCities handles GET /api/cities.
func (h *Handlers) GetCities(w http.ResponseWriter, r *http.Request) {
	pair, err := h.cities.Get(r.Context())
	if err != nil {
		zap.L().Warn("api: reading cities", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, cityPairJSON(pair))
}

// PutCities handles PUT /api/cities.
func (h *Handlers) PutCities(w http.ResponseWriter, r *http.Request) {
	var body cityPairBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair := model.CityPair{A: body.CityA, B: body.CityB}
	if err := h.cities.Set(r.Context(), pair); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cityPairJSON(pair))
}

type cityPairBody struct {
	CityA model.ReferenceCity `json:"city_a"`
	CityB model.ReferenceCity `json:"city_b"`
}

func cityPairJSON(p model.CityPair) cityPairBody {
	return cityPairBody{CityA: p.A, CityB: p.B}
}

func listingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return 0, false
	}
	return id, true
}

func profileParam(w http.ResponseWriter, r *http.Request) (model.Profile, bool) {
	p := model.Profile(chi.URLParam(r, "profile"))
	if p != model.ProfileInvestment && p != model.ProfileLifestyle {
		writeError(w, http.StatusBadRequest, "profile must be investment or lifestyle")
		return "", false
	}
	return p, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

var _ Enricher = (*enrichment.Orchestrator)(nil)

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/settings"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

type fakeEnricher struct {
	mu  sync.Mutex
	ids []int64
}

func (f *fakeEnricher) Enrich(_ context.Context, id int64) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return &model.Run{ID: "run-1", ListingID: id, Status: model.RunStatusComplete}, nil
}

type testEnv struct {
	srv      *httptest.Server
	store    *store.SQLiteStore
	enricher *fakeEnricher
	listing  int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	l := &model.Listing{
		SourceID:     "idealista-1",
		Title:        "Terreno urbanizable en Gijón",
		Municipality: "Gijón",
		Price:        model.Float(90000),
		Area:         model.Float(1200),
		LandType:     model.LandTypeBuildable,
		Description:  "Parcela con agua y luz",
	}
	require.NoError(t, st.CreateListing(ctx, l))

	wm := scoring.NewWeightManager(st)
	svc := scoring.NewService(wm, st, settings.NewMix(st, model.DefaultMix))
	enr := &fakeEnricher{}

	h := NewHandlers(ctx, st, svc, enr, wm, settings.NewCities(st), 10)
	h.background = func(fn func(ctx context.Context)) { fn(ctx) }

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st, enricher: enr, listing: l.ID}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestGetScore(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/listings/"+itoa(env.listing)+"/score", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "combined_score")
	assert.Contains(t, body, "individual_scores")

	saved, err := env.store.GetListing(context.Background(), env.listing)
	require.NoError(t, err)
	assert.NotNil(t, saved.ScoreTotal, "on-demand scoring is persisted")
}

func TestGetScore_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/listings/abc/score", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/listings/9999/score", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "listing not found", body["error"])
}

func TestEnrich_Accepted(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/listings/"+itoa(env.listing)+"/enrich", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, []int64{env.listing}, env.enricher.ids)

	resp, _ = env.do(t, http.MethodPost, "/api/listings/424242/enrich", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWeights_GetPut(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/weights/investment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	weights, ok := body["weights"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, weights, len(model.Criteria))

	resp, _ = env.do(t, http.MethodPut, "/api/weights/investment", `{"investment_yield": 3, "legal_status": 1}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/weights/investment", "")
	normalized := body["normalized"].(map[string]any)
	assert.InDelta(t, 0.75, normalized["investment_yield"], 1e-9)
	assert.InDelta(t, 0.25, normalized["legal_status"], 1e-9)

	saved, err := env.store.GetListing(context.Background(), env.listing)
	require.NoError(t, err)
	assert.NotNil(t, saved.ScoreTotal, "weight change rescored listings")
}

func TestWeights_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/weights/combined", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/weights/lifestyle", `{"unknown_criterion": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/weights/lifestyle", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCities_GetPut(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/cities", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Oviedo", body["city_a"].(map[string]any)["name"])

	resp, _ = env.do(t, http.MethodPut, "/api/cities",
		`{"city_a":{"name":"Santander","lat":43.4623,"lon":-3.8099},"city_b":{"name":"Gijón","lat":43.5322,"lon":-5.6611}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/cities", "")
	assert.Equal(t, "Santander", body["city_a"].(map[string]any)["name"])

	resp, _ = env.do(t, http.MethodPut, "/api/cities", `{"city_a":{"name":"","lat":0,"lon":0}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/cities", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

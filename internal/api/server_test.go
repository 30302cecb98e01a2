package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/collector"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/tracker"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const document = `
name: Balanced
targetAssetClassAllocation:
  stocks: 50
  bonds: 50
targetCountryAllocation:
  US: 60
  Europe: 40
maxDrift: 10
etfs:
  WORLD:
    name: World
    assetClass: {name: World, category: stocks}
    countries: {US: 100}
    transactions:
      - {date: 2024-01-02, quantity: 30, price: 100}
  BONDS:
    name: Bonds
    dataSource: justetf
    assetClass: {name: Bonds, category: bonds}
    transactions:
      - {date: 2024-01-02, quantity: 10, price: 100}
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, _ := newTestServerWithStore(t)
	return s
}

func newTestServerWithStore(t *testing.T) (*Server, *cache.MemoryCache) {
	t.Helper()
	store := cache.NewMemoryCache()
	mock := &collector.MockFetcher{Price: 100, Now: func() time.Time { return now }}
	c := collector.NewCollector(map[model.DataSource]collector.Fetcher{
		model.SourceBorsaItaliana: mock,
		model.SourceJustETF:       mock,
	}, store, zerolog.Nop())
	c.Now = func() time.Time { return now }

	s := New(Config{
		Addr:    ":0",
		Log:     zerolog.Nop(),
		Tracker: tracker.NewManager(store, c, zerolog.Nop()),
	})
	s.now = func() time.Time { return now }
	return s, store
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func loaded(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/portfolio", document)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/prices/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return s
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["portfolioLoaded"])
}

func TestNoPortfolio(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/api/portfolio", "/api/report", "/api/drift/country"} {
		rec, body := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "no portfolio loaded", body["error"], target)
	}
	rec, _ := do(t, s, http.MethodPost, "/api/prices/refresh", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportPortfolio(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/portfolio", document)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Balanced", body["name"])
	assert.NotEmpty(t, body["_id"])

	rec, body = do(t, s, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["etfs"], 2)

	rec, body = do(t, s, http.MethodPost, "/api/portfolio", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "the file is empty", body["error"])

	rec, _ = do(t, s, http.MethodPost, "/api/portfolio", "name: [")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport(t *testing.T) {
	s := loaded(t)

	rec, body := do(t, s, http.MethodGet, "/api/report?date=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 4000.0, summary["value"])
	assert.Equal(t, 4000.0, summary["cost"])
	assert.Equal(t, "2024-03-01", body["date"])

	rec, body = do(t, s, http.MethodGet, "/api/report?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid date")
}

func TestDrift(t *testing.T) {
	s := loaded(t)

	rec, body := do(t, s, http.MethodGet, "/api/drift/asset-class", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buy-and-sell", body["strategy"])
	assert.Equal(t, true, body["feasible"])
	actions := body["actions"].([]any)
	require.Len(t, actions, 2)
	assert.Equal(t, map[string]any{"key": "stocks", "buy": 0.0, "sell": 1000.0}, actions[0])
	assert.Equal(t, map[string]any{"key": "bonds", "buy": 1000.0, "sell": 0.0}, actions[1])

	rec, body = do(t, s, http.MethodGet, "/api/drift/country?strategy=sell", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["feasible"])
	assert.Equal(t, []any{"Europe"}, body["blockers"])

	rec, _ = do(t, s, http.MethodGet, "/api/drift/sector", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, s, http.MethodGet, "/api/drift/country?strategy=hold", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `unknown strategy "hold"`, body["error"])
}

func TestRefreshPrices(t *testing.T) {
	s := loaded(t)

	rec, body := do(t, s, http.MethodPost, "/api/prices/refresh?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["refreshed"])
	assert.Equal(t, map[string]any{"WORLD": "2024-03-01", "BONDS": "2024-03-01"}, body["asOf"])

	rec, _ = do(t, s, http.MethodPost, "/api/prices/refresh?force=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjust(t *testing.T) {
	s := loaded(t)

	rec, body := do(t, s, http.MethodPost, "/api/etfs/WORLD/adjust", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"date": "2024-03-01", "quantity": 5.0, "price": 100.0}, body)

	_, body = do(t, s, http.MethodGet, "/api/report", "")
	etfs := body["etfs"].([]any)
	assert.Equal(t, 35.0, etfs[0].(map[string]any)["quantity"])

	rec, _ = do(t, s, http.MethodPost, "/api/etfs/MISSING/adjust", `{"quantity": 5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/etfs/WORLD/adjust", `{"quantity": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/etfs/WORLD/adjust", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/report", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDriftHistory(t *testing.T) {
	s, store := newTestServerWithStore(t)
	rec, body := do(t, s, http.MethodGet, "/api/drift/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, s, http.MethodPost, "/api/portfolio", document)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["_id"].(string)

	rec, body = do(t, s, http.MethodGet, "/api/drift/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["snapshots"])
	assert.EqualValues(t, 30, body["limit"])

	for i, day := range []string{"2024-03-01", "2024-03-04", "2024-03-05"} {
		require.NoError(t, store.RecordDrift(&cache.DriftSnapshot{
			PortfolioID:        id,
			Date:               model.MustParseDate(day),
			RecordedAt:         now.AddDate(0, 0, i),
			MaxDrift:           10,
			AssetClassMaxDrift: float64(5 * i),
			Breached:           i == 2,
		}))
	}

	rec, body = do(t, s, http.MethodGet, "/api/drift/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshots := body["snapshots"].([]any)
	require.Len(t, snapshots, 2)
	first := snapshots[0].(map[string]any)
	assert.Equal(t, "2024-03-05", first["date"])
	assert.Equal(t, true, first["breached"])
	assert.EqualValues(t, 10, first["assetClassMaxDrift"])

	rec, body = do(t, s, http.MethodGet, "/api/drift/history?limit=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["snapshots"], 3)

	rec, _ = do(t, s, http.MethodGet, "/api/drift/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/drift/history?limit=all", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportPortfolio(t *testing.T) {
	s := loaded(t)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio?format=yaml", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "name: Balanced")
	assert.Contains(t, rec.Body.String(), "dataSource: justetf")

	// the export is a valid import document
	rec, body := do(t, s, http.MethodPost, "/api/portfolio", rec.Body.String())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Balanced", body["name"])
}

func TestDeletePortfolio(t *testing.T) {
	s, store := newTestServerWithStore(t)
	rec, _ := do(t, s, http.MethodDelete, "/api/portfolio", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/portfolio", document)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, s, http.MethodDelete, "/api/portfolio", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	saved, err := store.Portfolios()
	require.NoError(t, err)
	assert.Empty(t, saved)

	rec, body := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["portfolioLoaded"])
}

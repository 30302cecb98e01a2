package scheduler

import (
	"context"
	"errors"
	"sync"
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

var now = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return r.err
}

func portfolio(maxDrift float64) *model.Portfolio {
	d := model.MustParseDate("2024-01-02")
	return &model.Portfolio{
		ID:                         "p1",
		Name:                       "Test",
		TargetAssetClassAllocation: model.WeightsOf([]model.Category{"stocks", "bonds"}, map[model.Category]float64{"stocks": 50, "bonds": 50}),
		MaxDrift:                   maxDrift,
		ETFs: []model.ETF{
			{ISIN: "S", DataSource: model.SourceBorsaItaliana, AssetClass: model.AssetClass{Category: "stocks"},
				Transactions: []model.Transaction{{Date: d, Quantity: 30, Price: 100}}},
			{ISIN: "B", DataSource: model.SourceBorsaItaliana, AssetClass: model.AssetClass{Category: "bonds"},
				Transactions: []model.Transaction{{Date: d, Quantity: 10, Price: 100}}},
		},
	}
}

func newScheduler(t *testing.T, fetcher collector.Fetcher) (*Scheduler, *recordingNotifier, *cache.MemoryCache, *tracker.Manager) {
	t.Helper()
	store := cache.NewMemoryCache()
	c := collector.NewCollector(map[model.DataSource]collector.Fetcher{model.SourceBorsaItaliana: fetcher}, store, zerolog.Nop())
	c.Now = func() time.Time { return now }
	tm := tracker.NewManager(store, c, zerolog.Nop())
	n := &recordingNotifier{}
	s := NewScheduler(context.Background(), tm, n, store, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s, n, store, tm
}

func TestRegisterAll(t *testing.T) {
	s, _, _, _ := newScheduler(t, &collector.MockFetcher{Price: 100})
	require.NoError(t, s.RegisterAll("0 0 7 * * *", "0 0 18 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	assert.Error(t, s.RegisterAll("nonsense", "0 0 18 * * 1-5"))
}

func TestDriftCheck_AlertsOnBreach(t *testing.T) {
	s, n, store, tm := newScheduler(t, &collector.MockFetcher{Price: 100, Now: func() time.Time { return now }})
	require.NoError(t, tm.SetPortfolio(portfolio(10)))
	s.RunRefreshNow()
	assert.Empty(t, n.sent)

	s.RunDriftCheckNow()

	history, err := store.DriftHistory("p1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 4000.0, history[0].Value)
	assert.Equal(t, 50.0, history[0].AssetClassMaxDrift)
	assert.True(t, history[0].Breached)

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "Drift alert")
}

func TestDriftCheck_QuietWithinTolerance(t *testing.T) {
	s, n, store, tm := newScheduler(t, &collector.MockFetcher{Price: 100})
	require.NoError(t, tm.SetPortfolio(portfolio(60)))
	s.RunRefreshNow()
	s.RunDriftCheckNow()

	history, err := store.DriftHistory("p1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Breached)
	assert.Empty(t, n.sent)
}

func TestDriftCheck_NoPortfolio(t *testing.T) {
	s, n, _, _ := newScheduler(t, &collector.MockFetcher{Price: 100})
	s.RunDriftCheckNow()
	s.RunRefreshNow()
	assert.Empty(t, n.sent)
}

func TestRefreshTask_NotifiesFailures(t *testing.T) {
	s, n, _, tm := newScheduler(t, &collector.MockFetcher{Err: errors.New("upstream down")})
	require.NoError(t, tm.SetPortfolio(portfolio(10)))

	s.RunRefreshNow()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "upstream down")
}

func TestHandleCommand(t *testing.T) {
	s, _, _, tm := newScheduler(t, &collector.MockFetcher{Price: 100, Now: func() time.Time { return now }})

	assert.Contains(t, s.HandleCommand(context.Background(), "/summary"), "no portfolio loaded")

	require.NoError(t, tm.SetPortfolio(portfolio(10)))
	assert.Equal(t, "✅ Prices refreshed", s.HandleCommand(context.Background(), "/refresh@EtfSentinelBot"))

	assert.Contains(t, s.HandleCommand(context.Background(), "/summary"), "Value: €4,000.00")

	drift := s.HandleCommand(context.Background(), "/drift")
	assert.Contains(t, drift, "Asset classes")
	assert.Contains(t, drift, "sell €1,000.00")

	buy := s.HandleCommand(context.Background(), "/drift buy")
	assert.Contains(t, buy, "buy €2,000.00")

	assert.Contains(t, s.HandleCommand(context.Background(), "/drift_country"), "Countries")
	assert.Contains(t, s.HandleCommand(context.Background(), "/drift hold"), `unknown strategy "hold"`)
	assert.Contains(t, s.HandleCommand(context.Background(), "hello"), "/summary")
	assert.Contains(t, s.HandleCommand(context.Background(), ""), "Commands:")
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"EtfSentinel/internal/model"
)

// DefaultMaxAge is how long a cached price record stays fresh.
const DefaultMaxAge = 24 * time.Hour

const defaultConcurrency = 4

// PriceCache is the part of the local cache the collector reads and writes.
type PriceCache interface {
	SavePrice(isin string, h *model.PriceHistory) error
	Price(isin string) (*model.PriceHistory, bool, error)
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Source string
	Price  float64
	Days   int
	Series map[string][]model.PricePoint // per ISIN, overrides the generated series
	Err    error
	Now    func() time.Time

	calls atomic.Int64
}

func (m *MockFetcher) Name() string {
	if m.Source == "" {
		return "mock"
	}
	return m.Source
}

// Calls returns how many times FetchHistory ran.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func (m *MockFetcher) FetchHistory(_ context.Context, isin string) (*model.PriceHistory, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	series, ok := m.Series[isin]
	if !ok {
		series = generateMockSeries(m.Price, m.Days, model.DateOf(now))
	}
	if len(series) == 0 {
		return nil, noLastPrice(isin)
	}
	return model.NewPriceHistory(now, series), nil
}

func generateMockSeries(basePrice float64, days int, last model.Date) []model.PricePoint {
	if days <= 0 {
		days = 1
	}
	series := make([]model.PricePoint, days)
	for i := 0; i < days; i++ {
		series[i] = model.PricePoint{
			Date:  last.AddDays(i - days + 1),
			Price: basePrice * (1 + float64(i-days+1)*0.001),
		}
	}
	return series
}

// Collector keeps the price records of a portfolio fresh, reading through the cache.
type Collector struct {
	Fetchers    map[model.DataSource]Fetcher
	Cache       PriceCache
	MaxAge      time.Duration
	Concurrency int
	Now         func() time.Time

	log   zerolog.Logger
	group singleflight.Group
}

// NewCollector creates a new Collector.
func NewCollector(fetchers map[model.DataSource]Fetcher, cache PriceCache, log zerolog.Logger) *Collector {
	return &Collector{
		Fetchers:    fetchers,
		Cache:       cache,
		MaxAge:      DefaultMaxAge,
		Concurrency: defaultConcurrency,
		Now:         time.Now,
		log:         log.With().Str("component", "collector").Logger(),
	}
}

// Refresh returns a price record for every instrument it could resolve. A cached record
// younger than MaxAge is used as is unless force is set; otherwise the instrument's data
// source is queried and the result cached. When a fetch fails the cached record, however
// old, is used instead. The returned error joins the failures of instruments left
// without any price.
func (c *Collector) Refresh(ctx context.Context, etfs []model.ETF, force bool) (model.Prices, error) {
	prices := make(model.Prices, len(etfs))
	var (
		mu   sync.Mutex
		errs []error
		seen = make(map[string]bool, len(etfs))
	)

	var g errgroup.Group
	g.SetLimit(max(c.Concurrency, 1))
	for _, etf := range etfs {
		if seen[etf.ISIN] {
			continue
		}
		seen[etf.ISIN] = true

		g.Go(func() error {
			h, err := c.price(ctx, etf, force)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			prices[etf.ISIN] = *h
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info().
		Int("instruments", len(seen)).
		Int("priced", len(prices)).
		Bool("force", force).
		Msg("prices refreshed")
	return prices, errors.Join(errs...)
}

func (c *Collector) price(ctx context.Context, etf model.ETF, force bool) (*model.PriceHistory, error) {
	cached, hasCached := c.cached(etf.ISIN)
	if hasCached && !force && !cached.Stale(c.now(), c.maxAge()) {
		return cached, nil
	}

	fresh, err := c.fetch(ctx, etf)
	if err != nil {
		if hasCached {
			c.log.Warn().Err(err).
				Str("isin", etf.ISIN).
				Time("cached_at", cached.AsOf).
				Msg("price fetch failed, using cached record")
			return cached, nil
		}
		return nil, err
	}

	if c.Cache != nil {
		if err := c.Cache.SavePrice(etf.ISIN, fresh); err != nil {
			c.log.Warn().Err(err).Str("isin", etf.ISIN).Msg("failed to cache price")
		}
	}
	return fresh, nil
}

func (c *Collector) cached(isin string) (*model.PriceHistory, bool) {
	if c.Cache == nil {
		return nil, false
	}
	h, ok, err := c.Cache.Price(isin)
	if err != nil {
		c.log.Warn().Err(err).Str("isin", isin).Msg("failed to read cached price")
		return nil, false
	}
	return h, ok
}

// fetch queries the instrument's data source. Concurrent fetches of one ISIN share a call.
func (c *Collector) fetch(ctx context.Context, etf model.ETF) (*model.PriceHistory, error) {
	source := etf.DataSource
	if source == "" {
		source = model.DefaultDataSource
	}
	f, ok := c.Fetchers[source]
	if !ok {
		return nil, fmt.Errorf("%s: no fetcher for data source %q", etf.ISIN, source)
	}

	v, err, _ := c.group.Do(string(source)+"/"+etf.ISIN, func() (interface{}, error) {
		return f.FetchHistory(ctx, etf.ISIN)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PriceHistory), nil
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Collector) maxAge() time.Duration {
	if c.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return c.MaxAge
}

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/importer"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/strategy"
)

// ErrNoPortfolio is returned by operations that need a loaded portfolio.
var ErrNoPortfolio = errors.New("no portfolio loaded")

// Refresher resolves the price records of a set of holdings.
type Refresher interface {
	Refresh(ctx context.Context, etfs []model.ETF, force bool) (model.Prices, error)
}

// Manager holds the current portfolio and its prices with concurrency safety.
// Every mutation is persisted to the cache and invalidates the memoized reports.
type Manager struct {
	mu        sync.Mutex
	portfolio *model.Portfolio
	prices    model.Prices
	version   uint64
	reports   map[model.Date]*model.Report // valid for version only

	store     cache.Cache
	refresher Refresher
	log       zerolog.Logger
	now       func() time.Time
}

// NewManager creates an empty Manager. Call Load to restore the cached state.
func NewManager(store cache.Cache, refresher Refresher, log zerolog.Logger) *Manager {
	return &Manager{
		prices:    make(model.Prices),
		reports:   make(map[model.Date]*model.Report),
		store:     store,
		refresher: refresher,
		log:       log.With().Str("component", "tracker").Logger(),
		now:       time.Now,
	}
}

// Load restores the most recently saved portfolio and the cached prices of its holdings,
// however old. It reports whether a portfolio was found.
func (m *Manager) Load() (bool, error) {
	portfolios, err := m.store.Portfolios()
	if err != nil {
		return false, fmt.Errorf("load portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		return false, nil
	}
	p := portfolios[0]

	prices := make(model.Prices, len(p.ETFs))
	for _, etf := range p.ETFs {
		h, ok, err := m.store.Price(etf.ISIN)
		if err != nil {
			m.log.Warn().Err(err).Str("isin", etf.ISIN).Msg("failed to read cached price")
			continue
		}
		if ok {
			prices[etf.ISIN] = *h
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolio = p
	m.prices = prices
	m.invalidate()

	m.log.Info().
		Str("portfolio", p.Name).
		Int("etfs", len(p.ETFs)).
		Int("prices", len(prices)).
		Msg("state restored from cache")
	return true, nil
}

// SetPortfolio replaces the current portfolio and saves it.
func (m *Manager) SetPortfolio(p *model.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.portfolio = p.Clone()
	m.invalidate()
	return m.save()
}

// RemovePortfolio deletes the current portfolio from the cache and forgets it.
// Cached prices stay, other holdings may share them.
func (m *Manager) RemovePortfolio() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portfolio == nil {
		return ErrNoPortfolio
	}
	if err := m.store.DeletePortfolio(m.portfolio.ID); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	m.log.Info().Str("portfolio", m.portfolio.Name).Msg("portfolio removed")
	m.portfolio = nil
	m.invalidate()
	return nil
}

// Export writes the current portfolio back as a YAML document.
func (m *Manager) Export() ([]byte, error) {
	p := m.Portfolio()
	if p == nil {
		return nil, ErrNoPortfolio
	}
	return importer.Marshal(p)
}

// DriftHistory returns up to limit recorded drift checks of the current portfolio,
// newest first. A limit of 0 returns them all.
func (m *Manager) DriftHistory(limit int) ([]cache.DriftSnapshot, error) {
	p := m.Portfolio()
	if p == nil {
		return nil, ErrNoPortfolio
	}
	history, err := m.store.DriftHistory(p.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("drift history: %w", err)
	}
	return history, nil
}

// Portfolio returns a copy of the current portfolio, nil when none is loaded.
func (m *Manager) Portfolio() *model.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.portfolio == nil {
		return nil
	}
	return m.portfolio.Clone()
}

// Prices returns a copy of the known price records.
func (m *Manager) Prices() model.Prices {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices.Clone()
}

// SetPrices merges records into the known prices. Each record replaces the previous
// one of its ISIN as a whole.
func (m *Manager) SetPrices(prices model.Prices) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for isin, h := range prices.Clone() {
		m.prices[isin] = h
	}
	m.invalidate()
}

// SetPrice replaces the record of one ISIN.
func (m *Manager) SetPrice(isin string, h *model.PriceHistory) {
	m.SetPrices(model.Prices{isin: *h})
}

// RefreshPrices asks the refresher for the prices of every holding and stores whatever
// came back, even on a partial failure.
func (m *Manager) RefreshPrices(ctx context.Context, force bool) error {
	p := m.Portfolio()
	if p == nil {
		return ErrNoPortfolio
	}
	prices, err := m.refresher.Refresh(ctx, p.ETFs, force)
	if len(prices) > 0 {
		m.SetPrices(prices)
	}
	return err
}

// AdjustQuantity records a manual change of quantity units of isin on the given date.
// The synthetic transaction is priced at the current price, 0 when unknown.
func (m *Manager) AdjustQuantity(isin string, quantity float64, on model.Date) (model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portfolio == nil {
		return model.Transaction{}, ErrNoPortfolio
	}
	tx := model.Transaction{
		Date:     on,
		Quantity: quantity,
		Price:    m.prices.Current(isin),
	}
	next, err := m.portfolio.WithTransaction(isin, tx)
	if err != nil {
		return model.Transaction{}, err
	}

	m.portfolio = next
	m.invalidate()
	if err := m.save(); err != nil {
		return model.Transaction{}, err
	}
	m.log.Info().
		Str("isin", isin).
		Float64("quantity", quantity).
		Float64("price", tx.Price).
		Msg("quantity adjusted")
	return tx, nil
}

// Report evaluates the portfolio on the given date. Reports are memoized until the next
// mutation; callers must treat them as read-only.
func (m *Manager) Report(on model.Date) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portfolio == nil {
		return nil, ErrNoPortfolio
	}
	if r, ok := m.reports[on]; ok {
		return r, nil
	}
	r := strategy.Evaluate(m.portfolio, m.prices, on)
	m.reports[on] = r
	return r, nil
}

// Today evaluates the portfolio on the current date.
func (m *Manager) Today() (*model.Report, error) {
	return m.Report(model.DateOf(m.now()))
}

// Version increases with every mutation.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Manager) invalidate() {
	m.version++
	clear(m.reports)
}

func (m *Manager) save() error {
	if err := m.store.SavePortfolio(m.portfolio); err != nil {
		m.log.Error().Err(err).Msg("failed to save portfolio")
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

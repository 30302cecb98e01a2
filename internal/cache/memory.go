package cache

import (
	"slices"
	"sync"

	"EtfSentinel/internal/model"
)

// MemoryCache keeps everything in process memory. It is used by tests and when
// persistence is switched off.
type MemoryCache struct {
	mu         sync.Mutex
	portfolios []*model.Portfolio // most recent first
	prices     map[string]model.PriceHistory
	drift      []DriftSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prices: make(map[string]model.PriceHistory)}
}

func (m *MemoryCache) SavePortfolio(p *model.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios = slices.DeleteFunc(m.portfolios, func(x *model.Portfolio) bool { return x.ID == p.ID })
	m.portfolios = slices.Insert(m.portfolios, 0, p.Clone())
	return nil
}

func (m *MemoryCache) Portfolios() ([]*model.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Portfolio, len(m.portfolios))
	for i, p := range m.portfolios {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *MemoryCache) DeletePortfolio(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.portfolios)
	m.portfolios = slices.DeleteFunc(m.portfolios, func(x *model.Portfolio) bool { return x.ID == id })
	if len(m.portfolios) == n {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryCache) SavePrice(isin string, h *model.PriceHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *h
	rec.Series = slices.Clone(h.Series)
	m.prices[isin] = rec
	return nil
}

func (m *MemoryCache) Price(isin string) (*model.PriceHistory, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.prices[isin]
	if !ok {
		return nil, false, nil
	}
	rec.Series = slices.Clone(rec.Series)
	return &rec, true, nil
}

func (m *MemoryCache) RecordDrift(s *DriftSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drift = append(m.drift, *s)
	return nil
}

func (m *MemoryCache) DriftHistory(portfolioID string, limit int) ([]DriftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DriftSnapshot
	for i := len(m.drift) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if m.drift[i].PortfolioID == portfolioID {
			out = append(out, m.drift[i])
		}
	}
	return out, nil
}

func (m *MemoryCache) Close() error { return nil }

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*SQLiteCache)(nil)
)

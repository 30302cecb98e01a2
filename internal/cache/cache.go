package cache

import (
	"errors"
	"time"

	"EtfSentinel/internal/model"
)

// ErrNotFound is returned when a stored record does not exist.
var ErrNotFound = errors.New("not found")

// DriftSnapshot is one recorded drift check of a portfolio.
type DriftSnapshot struct {
	PortfolioID        string     `json:"portfolioId"`
	Date               model.Date `json:"date"`
	RecordedAt         time.Time  `json:"recordedAt"`
	Value              float64    `json:"value"`
	Cost               float64    `json:"cost"`
	MaxDrift           float64    `json:"maxDrift"`
	AssetClassMaxDrift float64    `json:"assetClassMaxDrift"`
	CountryMaxDrift    float64    `json:"countryMaxDrift"`
	Breached           bool       `json:"breached"`
}

// SnapshotOf summarizes the drift state of a report.
func SnapshotOf(r *model.Report, at time.Time) *DriftSnapshot {
	return &DriftSnapshot{
		PortfolioID:        r.PortfolioID,
		Date:               r.Date,
		RecordedAt:         at,
		Value:              r.Summary.Value,
		Cost:               r.Summary.Cost,
		MaxDrift:           r.AssetClassDrift.MaxDrift,
		AssetClassMaxDrift: r.AssetClassDrift.MaxCurrentDrift,
		CountryMaxDrift:    r.CountryDrift.MaxCurrentDrift,
		Breached:           r.AssetClassDrift.Breached() || r.CountryDrift.Breached(),
	}
}

// Cache persists portfolios, price records and drift history between runs.
type Cache interface {
	SavePortfolio(p *model.Portfolio) error
	// Portfolios returns the stored portfolios, most recently saved first.
	Portfolios() ([]*model.Portfolio, error)
	DeletePortfolio(id string) error

	// SavePrice replaces the whole record of isin.
	SavePrice(isin string, h *model.PriceHistory) error
	Price(isin string) (*model.PriceHistory, bool, error)

	RecordDrift(s *DriftSnapshot) error
	// DriftHistory returns up to limit snapshots of a portfolio, newest first.
	DriftHistory(portfolioID string, limit int) ([]DriftSnapshot, error)

	Close() error
}

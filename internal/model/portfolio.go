package model

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownETF is returned when an ISIN is not part of the portfolio.
var ErrUnknownETF = errors.New("unknown etf")

// Transaction is a one-off buy (positive quantity) or sell (negative quantity).
type Transaction struct {
	Date     Date    `json:"date" yaml:"date"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Price    float64 `json:"price" yaml:"price"`
}

// RecurringPlan is an open-ended systematic investment plan (SIP).
// Frequency counts purchases per year: 12 monthly, 6 bimonthly, 4 quarterly,
// 3 every four months, 2 half-yearly, 1 yearly. The period is 12/Frequency months.
type RecurringPlan struct {
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	Frequency int     `json:"frequency" yaml:"frequency"`
	StartDate Date    `json:"startDate" yaml:"startDate"`
}

// Period returns the months between two purchases, 0 for an unusable frequency.
func (p RecurringPlan) Period() int {
	if p.Frequency <= 0 || p.Frequency > 12 {
		return 0
	}
	return 12 / p.Frequency
}

type AssetClass struct {
	Name     string   `json:"name" yaml:"name"`
	Category Category `json:"category" yaml:"category"`
}

// ETF is a single holding. Countries holds the percentage of the equity exposure
// per country; it may be empty and need not add up to 100.
type ETF struct {
	ISIN         string           `json:"isin"`
	Name         string           `json:"name"`
	DataSource   DataSource       `json:"dataSource"`
	AssetClass   AssetClass       `json:"assetClass"`
	Countries    Weights[Country] `json:"countries"`
	Transactions []Transaction    `json:"transactions"`
	Plan         *RecurringPlan   `json:"sip,omitempty"`
}

// IsEquity reports whether the holding belongs to the equity sleeve.
func (e ETF) IsEquity() bool { return e.AssetClass.Category == CategoryStocks }

// LastTransaction returns the latest explicit transaction by date.
func (e ETF) LastTransaction() (Transaction, bool) {
	if len(e.Transactions) == 0 {
		return Transaction{}, false
	}
	last := e.Transactions[0]
	for _, tx := range e.Transactions[1:] {
		if !tx.Date.Before(last.Date) {
			last = tx
		}
	}
	return last, true
}

// Clone returns a deep copy.
func (e ETF) Clone() ETF {
	e.Countries = e.Countries.Clone()
	e.Transactions = slices.Clone(e.Transactions)
	if e.Plan != nil {
		plan := *e.Plan
		e.Plan = &plan
	}
	return e
}

// Portfolio is a named set of holdings with its target allocations.
type Portfolio struct {
	ID                         string            `json:"_id"`
	Name                       string            `json:"name"`
	TargetAssetClassAllocation Weights[Category] `json:"targetAssetClassAllocation"`
	TargetCountryAllocation    Weights[Country]  `json:"targetCountryAllocation"`
	MaxDrift                   float64           `json:"maxDrift"`
	ETFs                       []ETF             `json:"etfs"`
}

// ETF looks a holding up by ISIN.
func (p *Portfolio) ETF(isin string) (ETF, bool) {
	for _, e := range p.ETFs {
		if e.ISIN == isin {
			return e, true
		}
	}
	return ETF{}, false
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.TargetAssetClassAllocation = p.TargetAssetClassAllocation.Clone()
	c.TargetCountryAllocation = p.TargetCountryAllocation.Clone()
	c.ETFs = make([]ETF, len(p.ETFs))
	for i, e := range p.ETFs {
		c.ETFs[i] = e.Clone()
	}
	return &c
}

// WithTransaction returns a copy of p with tx appended to the history of isin.
func (p *Portfolio) WithTransaction(isin string, tx Transaction) (*Portfolio, error) {
	c := p.Clone()
	for i := range c.ETFs {
		if c.ETFs[i].ISIN == isin {
			c.ETFs[i].Transactions = append(c.ETFs[i].Transactions, tx)
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownETF, isin)
}

package model

import (
	"slices"
	"sort"
	"time"
)

// PricePoint is a single daily close.
type PricePoint struct {
	Date  Date    `json:"date"`
	Price float64 `json:"price"`
}

// PriceHistory is the last known quote of an instrument together with its daily series.
// Series is kept in ascending date order.
type PriceHistory struct {
	Price  float64      `json:"price"`
	AsOf   time.Time    `json:"timestamp"`
	Series []PricePoint `json:"history"`
}

// NewPriceHistory sorts the series by date and takes the current price from its last point.
func NewPriceHistory(asOf time.Time, series []PricePoint) *PriceHistory {
	s := slices.Clone(series)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	h := &PriceHistory{AsOf: asOf, Series: s}
	if len(s) > 0 {
		h.Price = s[len(s)-1].Price
	}
	return h
}

// LastDate returns the date of the most recent point.
func (h PriceHistory) LastDate() (Date, bool) {
	if len(h.Series) == 0 {
		return Date{}, false
	}
	return h.Series[len(h.Series)-1].Date, true
}

// PriceOn returns the close on d, or the closest earlier close when d is missing.
func (h PriceHistory) PriceOn(d Date) (float64, bool) {
	i := sort.Search(len(h.Series), func(i int) bool { return h.Series[i].Date.After(d) })
	if i == 0 {
		return 0, false
	}
	return h.Series[i-1].Price, true
}

// Stale reports whether the record is older than maxAge at now.
func (h PriceHistory) Stale(now time.Time, maxAge time.Duration) bool {
	return h.AsOf.IsZero() || now.Sub(h.AsOf) > maxAge
}

// Prices maps an ISIN to its price record.
type Prices map[string]PriceHistory

// Current returns the current price of isin, 0 when unknown.
func (p Prices) Current(isin string) float64 {
	return p[isin].Price
}

// Clone copies the map and every series.
func (p Prices) Clone() Prices {
	out := make(Prices, len(p))
	for isin, h := range p {
		h.Series = slices.Clone(h.Series)
		out[isin] = h
	}
	return out
}

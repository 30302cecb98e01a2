package calculator

import (
	"gonum.org/v1/gonum/floats"

	"EtfSentinel/internal/model"
)

// Filter selects holdings for a valuation.
type Filter func(model.ETF) bool

var (
	// All keeps every holding.
	All Filter = func(model.ETF) bool { return true }
	// Equities keeps the equity sleeve only.
	Equities Filter = model.ETF.IsEquity
)

// PriceOn returns the price of etf on the given date. It falls back to the closest
// earlier close, then to the price of the latest transaction, then to 0.
func PriceOn(etf model.ETF, prices model.Prices, on model.Date) float64 {
	if h, ok := prices[etf.ISIN]; ok {
		if p, ok := h.PriceOn(on); ok {
			return p
		}
	}
	if tx, ok := etf.LastTransaction(); ok {
		return tx.Price
	}
	return 0
}

// InstrumentCost is what was paid for etf up to asOf: explicit transactions at their
// own price plus every recurring purchase at the price of its date.
func InstrumentCost(etf model.ETF, prices model.Prices, asOf model.Date) float64 {
	var amounts []float64
	for _, tx := range etf.Transactions {
		amounts = append(amounts, tx.Quantity*tx.Price)
	}
	for _, d := range RecurringDates(etf.Plan, asOf) {
		amounts = append(amounts, etf.Plan.Quantity*PriceOn(etf, prices, d))
	}
	return floats.Sum(amounts)
}

// PortfolioCost is the cost basis of all holdings as of asOf.
func PortfolioCost(etfs []model.ETF, prices model.Prices, asOf model.Date) float64 {
	costs := make([]float64, len(etfs))
	for i, etf := range etfs {
		costs[i] = InstrumentCost(etf, prices, asOf)
	}
	return floats.Sum(costs)
}

// CurrentValue is the quantity held on asOf times the current price.
func CurrentValue(etf model.ETF, prices model.Prices, asOf model.Date) float64 {
	return QuantityAtDate(etf.Transactions, asOf, etf.Plan) * prices.Current(etf.ISIN)
}

// CurrentPortfolioValue sums the current value of the holdings accepted by filter.
// A nil filter keeps everything.
func CurrentPortfolioValue(etfs []model.ETF, prices model.Prices, asOf model.Date, filter Filter) float64 {
	if filter == nil {
		filter = All
	}
	values := make([]float64, 0, len(etfs))
	for _, etf := range etfs {
		if filter(etf) {
			values = append(values, CurrentValue(etf, prices, asOf))
		}
	}
	return floats.Sum(values)
}

// CurrentEtfData builds one row per holding. PaidValue includes recurring purchases,
// so the paid values always add up to PortfolioCost.
func CurrentEtfData(etfs []model.ETF, prices model.Prices, asOf model.Date) []model.EtfRow {
	rows := make([]model.EtfRow, len(etfs))
	for i, etf := range etfs {
		qty := QuantityAtDate(etf.Transactions, asOf, etf.Plan)
		rows[i] = model.EtfRow{
			ISIN:         etf.ISIN,
			Name:         etf.Name,
			Category:     etf.AssetClass.Category,
			Quantity:     qty,
			PaidValue:    InstrumentCost(etf, prices, asOf),
			CurrentValue: qty * prices.Current(etf.ISIN),
		}
	}
	return rows
}

// CurrentValuesByAssetClass groups current values by asset-class category.
func CurrentValuesByAssetClass(etfs []model.ETF, prices model.Prices, asOf model.Date) model.Weights[model.Category] {
	var out model.Weights[model.Category]
	for _, etf := range etfs {
		out.Add(etf.AssetClass.Category, CurrentValue(etf, prices, asOf))
	}
	return out
}

// CurrentValuesByCountry spreads the value of each equity holding over its country
// weights. The share not covered by any country is left out.
func CurrentValuesByCountry(etfs []model.ETF, prices model.Prices, asOf model.Date) model.Weights[model.Country] {
	var out model.Weights[model.Country]
	for _, etf := range etfs {
		if !Equities(etf) {
			continue
		}
		value := CurrentValue(etf, prices, asOf)
		for country, pct := range etf.Countries.All() {
			out.Add(country, value*pct/100)
		}
	}
	return out
}

// PricesAsOf returns the most recent series date among the holdings.
func PricesAsOf(etfs []model.ETF, prices model.Prices) (model.Date, bool) {
	var latest model.Date
	found := false
	for _, etf := range etfs {
		d, ok := prices[etf.ISIN].LastDate()
		if ok && (!found || d.After(latest)) {
			latest, found = d, true
		}
	}
	return latest, found
}

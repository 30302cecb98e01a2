package calculator

import "EtfSentinel/internal/model"

// Percentages converts amounts into percentages of total. A zero total yields 0
// for every key instead of a non-finite value.
func Percentages[K ~string](values model.Weights[K], total float64) model.Weights[K] {
	var out model.Weights[K]
	for k, v := range values.All() {
		out.Set(k, Percent(v, total))
	}
	return out
}

// CurrentAssetClassAllocation returns the share of total held in each asset class.
func CurrentAssetClassAllocation(etfs []model.ETF, prices model.Prices, asOf model.Date, total float64) model.Weights[model.Category] {
	return Percentages(CurrentValuesByAssetClass(etfs, prices, asOf), total)
}

// CurrentCountryAllocation returns the share of the equity value held in each country.
func CurrentCountryAllocation(totalEquity float64, byCountry model.Weights[model.Country]) model.Weights[model.Country] {
	return Percentages(byCountry, totalEquity)
}

package strategy

import (
	"EtfSentinel/internal/calculator"
	"EtfSentinel/internal/model"
)

// Evaluate derives the full report of p on the given date. It never mutates its inputs
// and always returns the same report for the same inputs.
func Evaluate(p *model.Portfolio, prices model.Prices, on model.Date) *model.Report {
	etfs := p.ETFs

	// Step a: valuations
	value := calculator.CurrentPortfolioValue(etfs, prices, on, calculator.All)
	equityValue := calculator.CurrentPortfolioValue(etfs, prices, on, calculator.Equities)
	cost := calculator.PortfolioCost(etfs, prices, on)
	asOf, _ := calculator.PricesAsOf(etfs, prices)

	// Step b: grouping by dimension
	byAssetClass := calculator.CurrentValuesByAssetClass(etfs, prices, on)
	byCountry := calculator.CurrentValuesByCountry(etfs, prices, on)

	// Step c: drift against targets
	report := &model.Report{
		PortfolioID:   p.ID,
		PortfolioName: p.Name,
		Date:          on,
		Summary: model.Summary{
			Value:       value,
			Cost:        cost,
			Variation:   Variation(value, cost),
			EquityValue: equityValue,
			PricesAsOf:  asOf,
		},
		Etfs:                 calculator.CurrentEtfData(etfs, prices, on),
		AssetClassValues:     byAssetClass,
		AssetClassAllocation: calculator.CurrentAssetClassAllocation(etfs, prices, on, value),
		CountryValues:        byCountry,
		CountryAllocation:    calculator.CurrentCountryAllocation(equityValue, byCountry),
		AssetClassDrift:      NewPlan(p.TargetAssetClassAllocation, byAssetClass, p.MaxDrift),
		CountryDrift:         NewPlan(p.TargetCountryAllocation, byCountry, p.MaxDrift),
		AssetClassColors:     calculator.AssetClassColors(p),
		CountryColors:        calculator.CountryColors(p),
	}
	return report
}

// Variation is the gain of value over cost in percent, 0 without a cost basis.
func Variation(value, cost float64) float64 {
	return calculator.Percent(value-cost, cost)
}

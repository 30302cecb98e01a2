package calculator

import (
	"fmt"

	"EtfSentinel/internal/model"
)

// ColorAssignment gives every key a stable chart slot: the target keys first, in
// their order, then keys found in the holdings that the target does not name.
func ColorAssignment[K ~string](targetKeys []K, etfs []model.ETF, extract func(model.ETF) []K) map[K]string {
	colors := make(map[K]string)
	assign := func(k K) {
		if _, ok := colors[k]; !ok {
			colors[k] = fmt.Sprintf("chart-%d", len(colors)+1)
		}
	}
	for _, k := range targetKeys {
		assign(k)
	}
	for _, etf := range etfs {
		for _, k := range extract(etf) {
			assign(k)
		}
	}
	return colors
}

// AssetClassColors assigns chart slots to asset-class categories.
func AssetClassColors(p *model.Portfolio) map[model.Category]string {
	return ColorAssignment(p.TargetAssetClassAllocation.Keys(), p.ETFs, func(e model.ETF) []model.Category {
		return []model.Category{e.AssetClass.Category}
	})
}

// CountryColors assigns chart slots to countries.
func CountryColors(p *model.Portfolio) map[model.Country]string {
	return ColorAssignment(p.TargetCountryAllocation.Keys(), p.ETFs, func(e model.ETF) []model.Country {
		return e.Countries.Keys()
	})
}
